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

package permissions

import "maps"

// -----------------------------------------------------------------------------
// Role Name Constants
// These are the canonical names for roles stored in the database.
// -----------------------------------------------------------------------------

const (
	// RoleSuperAdmin carries a single "manage all" grant.
	RoleSuperAdmin = "SUPER_ADMIN"

	// RoleAdmin manages events and can inspect users and roles.
	RoleAdmin = "ADMIN"

	// RoleUser reads events and edits the ones it owns.
	RoleUser = "USER"
)

// -----------------------------------------------------------------------------
// Action and Subject Constants
// Actions and subjects are free-form; these are the ones the application uses.
// -----------------------------------------------------------------------------

const (
	// ActionManage matches every action.
	ActionManage = "manage"
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

const (
	// SubjectAll matches every subject.
	SubjectAll   = "all"
	SubjectEvent = "Event"
	SubjectUser  = "User"
	SubjectRole  = "Role"
)

// UserIDPlaceholder resolves to the ID of the user an Ability was built for.
const UserIDPlaceholder = "${user.id}"

// -----------------------------------------------------------------------------
// Role Permission Mappings
// Used for seeding. Only copies leave this package.
// -----------------------------------------------------------------------------

var defaultGrants = map[string][]Permission{
	RoleSuperAdmin: {
		NewPermission(ActionManage, SubjectAll),
	},
	RoleAdmin: {
		NewPermission(ActionManage, SubjectEvent),
		NewPermission(ActionRead, SubjectUser),
		NewPermission(ActionRead, SubjectRole),
	},
	RoleUser: {
		NewPermission(ActionRead, SubjectEvent),
		NewPermission(ActionCreate, SubjectEvent),
		NewPermission(ActionUpdate, SubjectEvent, map[string]any{"ownerId": UserIDPlaceholder}),
		NewPermission(ActionDelete, SubjectEvent, map[string]any{"ownerId": UserIDPlaceholder}),
	},
}

// defaultRoleOrder lists the well-known roles, most privileged first.
var defaultRoleOrder = []string{RoleSuperAdmin, RoleAdmin, RoleUser}

// DefaultPermissions returns a fresh copy of the default grants of a
// well-known role, or nil for any other name.
func DefaultPermissions(roleName string) []Permission {
	grants, ok := defaultGrants[roleName]
	if !ok {
		return nil
	}
	return clonePermissions(grants)
}

// DefaultRolePermissions returns the well-known roles with their grants,
// most privileged first. Every call returns independent copies.
func DefaultRolePermissions() []Role {
	roles := make([]Role, 0, len(defaultRoleOrder))
	for _, name := range defaultRoleOrder {
		roles = append(roles, Role{Name: name, Permissions: DefaultPermissions(name)})
	}
	return roles
}

func clonePermissions(perms []Permission) []Permission {
	out := make([]Permission, len(perms))
	for i, p := range perms {
		out[i] = Permission{
			Action:     p.Action,
			Subject:    p.Subject,
			Conditions: maps.Clone(p.Conditions),
		}
	}
	return out
}
