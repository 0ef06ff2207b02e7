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

// Package requestctx builds the per-request authorization context.
package requestctx

import (
	"context"

	"github.com/testwelbi/eventboard/internal/permissions"
)

type contextKey string

const requestContextKey contextKey = "request_context"

// Context is the authorization state of a single request. It is built once
// per request and never shared between users.
type Context struct {
	User    *permissions.User
	Roles   []permissions.Role
	Ability *permissions.Ability
}

// New builds the request context for user. A nil user yields an anonymous
// context: any roles are ignored and the ability denies everything.
func New(user *permissions.User, roles []permissions.Role) *Context {
	if user == nil {
		return Anonymous()
	}
	return &Context{
		User:    user,
		Roles:   roles,
		Ability: permissions.BuildAbility(user, roles),
	}
}

// Anonymous returns a context with no user, no roles and an empty ability.
func Anonymous() *Context {
	return &Context{
		Ability: permissions.BuildAbility(nil, nil),
	}
}

// IsAnonymous reports whether the request has no authenticated user.
func (c *Context) IsAnonymous() bool {
	return c == nil || c.User == nil
}

// UserID returns the authenticated user's ID, or "" for anonymous requests.
func (c *Context) UserID() string {
	if c.IsAnonymous() {
		return ""
	}
	return c.User.ID
}

// RoleNames lists role names in assignment order.
func (c *Context) RoleNames() []string {
	if c == nil {
		return []string{}
	}
	names := make([]string, 0, len(c.Roles))
	for _, r := range c.Roles {
		names = append(names, r.Name)
	}
	return names
}

// Can delegates to the request's ability.
func (c *Context) Can(action, subject string, object ...any) bool {
	if c == nil {
		return false
	}
	return c.Ability.Can(action, subject, object...)
}

// Cannot delegates to the request's ability.
func (c *Context) Cannot(action, subject string, object ...any) bool {
	return !c.Can(action, subject, object...)
}

// Permissions returns the flattened grants of the request's roles.
func (c *Context) Permissions() []permissions.Permission {
	if c == nil {
		return []permissions.Permission{}
	}
	return permissions.UserPermissions(c.User, c.Roles)
}

// HasRole reports whether the request's user holds roleName.
func (c *Context) HasRole(roleName string) bool {
	if c == nil {
		return false
	}
	return permissions.HasRole(c.Roles, roleName)
}

// WithContext stores rc in ctx.
func WithContext(ctx context.Context, rc *Context) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// FromContext returns the request context stored in ctx, or an anonymous
// context when there is none. It never returns nil.
func FromContext(ctx context.Context) *Context {
	if rc, ok := ctx.Value(requestContextKey).(*Context); ok && rc != nil {
		return rc
	}
	return Anonymous()
}
