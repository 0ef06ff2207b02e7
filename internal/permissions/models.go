// Copyright 2026 The Eventboard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package permissions compiles role grants into a queryable Ability.
package permissions

import "time"

// Permission is one authorized operation on a resource type.
// Conditions optionally narrow the grant to matching object instances.
type Permission struct {
	Action     string         `json:"action"`
	Subject    string         `json:"subject"`
	Conditions map[string]any `json:"conditions,omitempty"`
}

// Role is a named bundle of permissions
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
}

// User is an identity. It carries no permissions of its own.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewPermission returns a Permission holding the given action and subject
// verbatim. At most one conditions map is used; extra arguments are ignored.
func NewPermission(action, subject string, conditions ...map[string]any) Permission {
	p := Permission{
		Action:  action,
		Subject: subject,
	}
	if len(conditions) > 0 {
		p.Conditions = conditions[0]
	}
	return p
}

// HasRole reports whether any role is named exactly roleName.
// There is no role hierarchy: SUPER_ADMIN does not imply ADMIN.
func HasRole(roles []Role, roleName string) bool {
	for _, r := range roles {
		if r.Name == roleName {
			return true
		}
	}
	return false
}

// UserPermissions flattens the permissions of every role, in role order and
// then in within-role order. Duplicates are kept.
// The user is accepted for symmetry with BuildAbility and is not consulted.
func UserPermissions(_ *User, roles []Role) []Permission {
	n := 0
	for _, r := range roles {
		n += len(r.Permissions)
	}

	perms := make([]Permission, 0, n)
	for _, r := range roles {
		perms = append(perms, r.Permissions...)
	}
	return perms
}
