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

package permissions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testwelbi/eventboard/internal/permissions"
)

func testUser() *permissions.User {
	now := time.Now()
	return &permissions.User{ID: "1", CreatedAt: now, UpdatedAt: now}
}

func superAdminRole() permissions.Role {
	return permissions.Role{
		ID:          "r1",
		Name:        permissions.RoleSuperAdmin,
		Permissions: []permissions.Permission{permissions.NewPermission("manage", "all")},
	}
}

func userRole() permissions.Role {
	return permissions.Role{
		ID:          "r2",
		Name:        permissions.RoleUser,
		Permissions: []permissions.Permission{permissions.NewPermission("read", "Post")},
	}
}

// event implements permissions.FieldGetter
type event struct {
	ownerID string
	status  string
}

func (e event) Field(name string) (any, bool) {
	switch name {
	case "ownerId":
		return e.ownerID, true
	case "status":
		return e.status, true
	}
	return nil, false
}

// TestPurpose: Validates that a SUPER_ADMIN "manage all" grant subsumes every check.
// Scope: Unit Test
// Security: Wildcard grant semantics
// Expected: Can is true for arbitrary actions and subjects, including manage/all itself.
// Test Case ID: PRM-01
func TestAbility_SuperAdminManagesAll(t *testing.T) {
	ability := permissions.BuildAbility(testUser(), []permissions.Role{superAdminRole()})

	assert.True(t, permissions.Can(ability, "manage", "all"))

	pairs := [][2]string{
		{"read", "Post"},
		{"delete", "Event"},
		{"publish", "Newsletter"},
		{"", ""},
		{"manage", "User"},
	}
	for _, p := range pairs {
		assert.True(t, ability.Can(p[0], p[1]), "%s %s", p[0], p[1])
		assert.False(t, ability.Cannot(p[0], p[1]), "%s %s", p[0], p[1])
	}
}

// TestPurpose: Validates that a user without roles is denied everything.
// Scope: Unit Test
// Security: Fail-closed default
// Expected: Can is false for every action/subject pair.
// Test Case ID: PRM-02
func TestAbility_NoRolesDeniesEverything(t *testing.T) {
	tests := []struct {
		name  string
		roles []permissions.Role
	}{
		{name: "nil roles", roles: nil},
		{name: "empty roles", roles: []permissions.Role{}},
		{name: "role without permissions", roles: []permissions.Role{{ID: "r3", Name: permissions.RoleUser}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ability := permissions.BuildAbility(testUser(), tt.roles)
			for _, action := range []string{"manage", "read", "create", "update", "delete"} {
				for _, subject := range []string{"all", "Post", "Event"} {
					assert.False(t, ability.Can(action, subject), "%s %s", action, subject)
					assert.True(t, ability.Cannot(action, subject), "%s %s", action, subject)
				}
			}
		})
	}
}

// TestPurpose: Validates exact-match grants for a plain USER role.
// Scope: Unit Test
// Expected: read Post is allowed, delete Post and manage all are not.
// Test Case ID: PRM-03
func TestAbility_UserRole(t *testing.T) {
	ability := permissions.BuildAbility(testUser(), []permissions.Role{userRole()})

	assert.True(t, permissions.Can(ability, "read", "Post"))
	assert.True(t, permissions.Cannot(ability, "delete", "Post"))
	assert.False(t, ability.Can("manage", "all"))
	assert.False(t, ability.Can("read", "all"))
	assert.False(t, ability.Can("read", "post"), "subjects are case-sensitive")
}

// TestPurpose: Validates the wildcard rules of the matcher.
// Scope: Unit Test
// Expected: "manage" matches any action and "all" matches any subject, but neither is matched by a query.
// Test Case ID: PRM-04
func TestAbility_WildcardMatching(t *testing.T) {
	tests := []struct {
		name     string
		perm     permissions.Permission
		action   string
		subject  string
		expected bool
	}{
		{"manage matches any action", permissions.NewPermission("manage", "Event"), "delete", "Event", true},
		{"manage stays on its subject", permissions.NewPermission("manage", "Event"), "delete", "Post", false},
		{"all matches any subject", permissions.NewPermission("read", "all"), "read", "Post", true},
		{"all stays on its action", permissions.NewPermission("read", "all"), "update", "Post", false},
		{"query for manage is not granted by read", permissions.NewPermission("read", "Event"), "manage", "Event", false},
		{"query for all is not granted by a type", permissions.NewPermission("read", "Event"), "read", "all", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ability := permissions.BuildAbility(nil, []permissions.Role{{Name: "X", Permissions: []permissions.Permission{tt.perm}}})
			assert.Equal(t, tt.expected, ability.Can(tt.action, tt.subject))
			assert.Equal(t, !tt.expected, ability.Cannot(tt.action, tt.subject))
		})
	}
}

// TestPurpose: Validates the flattened permission list used for audit display.
// Scope: Unit Test
// Expected: Length is the sum of role permission counts, duplicates are kept, and order is role order then within-role order.
// Test Case ID: PRM-05
func TestUserPermissions_FlattenPreservesOrder(t *testing.T) {
	roles := []permissions.Role{
		{Name: "A", Permissions: []permissions.Permission{
			permissions.NewPermission("read", "Post"),
			permissions.NewPermission("create", "Post"),
		}},
		{Name: "B"},
		{Name: "C", Permissions: []permissions.Permission{
			permissions.NewPermission("read", "Post"),
		}},
	}

	perms := permissions.UserPermissions(testUser(), roles)
	require.Len(t, perms, 3)
	assert.Equal(t, []permissions.Permission{
		permissions.NewPermission("read", "Post"),
		permissions.NewPermission("create", "Post"),
		permissions.NewPermission("read", "Post"),
	}, perms)

	assert.Empty(t, permissions.UserPermissions(nil, nil))

	ability := permissions.BuildAbility(testUser(), roles)
	assert.Equal(t, perms, ability.Rules())
}

// TestPurpose: Validates role membership checks.
// Scope: Unit Test
// Security: No implicit role hierarchy
// Expected: Exact, case-sensitive name match only.
// Test Case ID: PRM-06
func TestHasRole(t *testing.T) {
	roles := []permissions.Role{userRole()}

	assert.True(t, permissions.HasRole(roles, permissions.RoleUser))
	assert.False(t, permissions.HasRole(roles, permissions.RoleAdmin))
	assert.False(t, permissions.HasRole(roles, "user"))
	assert.False(t, permissions.HasRole(nil, permissions.RoleUser))
	assert.False(t, permissions.HasRole([]permissions.Role{superAdminRole()}, permissions.RoleAdmin),
		"SUPER_ADMIN must not imply ADMIN")
}

// TestPurpose: Validates the permission constructor stores its inputs verbatim.
// Scope: Unit Test
// Expected: Action and subject are unchanged; conditions are attached only when given.
// Test Case ID: PRM-07
func TestNewPermission(t *testing.T) {
	perm := permissions.NewPermission("read", "Post")
	assert.Equal(t, "read", perm.Action)
	assert.Equal(t, "Post", perm.Subject)
	assert.Nil(t, perm.Conditions)

	perm = permissions.NewPermission(" Read ", "post", map[string]any{"ownerId": "1"})
	assert.Equal(t, " Read ", perm.Action)
	assert.Equal(t, "post", perm.Subject)
	assert.Equal(t, map[string]any{"ownerId": "1"}, perm.Conditions)
}

// TestPurpose: Validates object-level condition evaluation, including user placeholders.
// Scope: Unit Test
// Security: Ownership enforcement (prevents horizontal privilege escalation)
// Expected: Conditional rules hold only for matching objects; type-level checks pass.
// Test Case ID: PRM-08
func TestAbility_Conditions(t *testing.T) {
	roles := []permissions.Role{{Name: permissions.RoleUser, Permissions: permissions.DefaultPermissions(permissions.RoleUser)}}
	ability := permissions.BuildAbility(testUser(), roles)

	// Type-level: conditions pass vacuously without an object
	assert.True(t, ability.Can("update", "Event"))

	assert.True(t, ability.Can("update", "Event", event{ownerID: "1"}))
	assert.False(t, ability.Can("update", "Event", event{ownerID: "2"}))
	assert.True(t, ability.Can("delete", "Event", map[string]any{"ownerId": "1"}))
	assert.False(t, ability.Can("delete", "Event", map[string]any{"title": "no owner"}))
	assert.True(t, ability.Can("read", "Event", event{ownerID: "2"}), "unconditional rule ignores the object")

	// Unsupported object shapes cannot satisfy conditions
	assert.False(t, ability.Can("update", "Event", struct{ OwnerID string }{"1"}))

	// Anonymous ability cannot resolve user placeholders
	anon := permissions.BuildAbility(nil, roles)
	assert.False(t, anon.Can("update", "Event", event{ownerID: ""}))
	assert.True(t, anon.Can("update", "Event"))
}

// TestPurpose: Validates value normalization in conditions.
// Scope: Unit Test
// Expected: Numbers compare by value, slices test membership, mismatched kinds do not match.
// Test Case ID: PRM-09
func TestAbility_ConditionValues(t *testing.T) {
	tests := []struct {
		name       string
		conditions map[string]any
		object     map[string]any
		expected   bool
	}{
		{"float condition matches int field", map[string]any{"year": float64(2024)}, map[string]any{"year": 2024}, true},
		{"different numbers", map[string]any{"year": 2024}, map[string]any{"year": int64(2025)}, false},
		{"slice membership", map[string]any{"status": []any{"draft", "published"}}, map[string]any{"status": "draft"}, true},
		{"slice non-member", map[string]any{"status": []string{"draft"}}, map[string]any{"status": "archived"}, false},
		{"string is not a number", map[string]any{"year": "2024"}, map[string]any{"year": 2024}, false},
		{"nil matches nil", map[string]any{"deletedAt": nil}, map[string]any{"deletedAt": nil}, true},
		{"all conditions must hold", map[string]any{"a": 1, "b": 2}, map[string]any{"a": 1, "b": 3}, false},
		{"email placeholder", map[string]any{"email": "${user.email}"}, map[string]any{"email": "u@example.com"}, true},
		{"unknown placeholder", map[string]any{"x": "${user.tenant}"}, map[string]any{"x": ""}, false},
		{"scalar matches array element", map[string]any{"tags": "public"}, map[string]any{"tags": []any{"public", "featured"}}, true},
		{"scalar missing from array", map[string]any{"tags": "private"}, map[string]any{"tags": []string{"public"}}, false},
		{"array field intersects slice condition", map[string]any{"tags": []any{"private", "featured"}}, map[string]any{"tags": []string{"public", "featured"}}, true},
		{"empty array field", map[string]any{"tags": "public"}, map[string]any{"tags": []string{}}, false},
		{"placeholder in array field", map[string]any{"editors": "${user.id}"}, map[string]any{"editors": []string{"7", "1"}}, true},
	}

	user := testUser()
	user.Email = "u@example.com"

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ability := permissions.BuildAbility(user, []permissions.Role{{
				Name:        "X",
				Permissions: []permissions.Permission{permissions.NewPermission("read", "Event", tt.conditions)},
			}})
			assert.Equal(t, tt.expected, ability.Can("read", "Event", tt.object))
		})
	}
}

// TestPurpose: Validates that an Ability cannot be changed after construction.
// Scope: Unit Test
// Security: Immutable authorization state
// Expected: Mutating the inputs or the returned copies does not alter checks.
// Test Case ID: PRM-10
func TestAbility_Immutable(t *testing.T) {
	cond := map[string]any{"ownerId": "1"}
	roles := []permissions.Role{{Name: "X", Permissions: []permissions.Permission{
		permissions.NewPermission("update", "Event", cond),
	}}}
	user := testUser()
	ability := permissions.BuildAbility(user, roles)

	cond["ownerId"] = "2"
	roles[0].Permissions[0].Action = "delete"
	user.ID = "2"

	assert.True(t, ability.Can("update", "Event", event{ownerID: "1"}))
	assert.False(t, ability.Can("delete", "Event"))

	ability.Rules()[0].Conditions["ownerId"] = "3"
	ability.User().ID = "3"
	assert.True(t, ability.Can("update", "Event", event{ownerID: "1"}))
	assert.Equal(t, "1", ability.User().ID)
}

// TestPurpose: Validates that a nil Ability is safe to query.
// Scope: Unit Test
// Expected: Can is false, Cannot is true, no panic.
// Test Case ID: PRM-11
func TestAbility_NilIsDenyAll(t *testing.T) {
	var ability *permissions.Ability
	assert.False(t, permissions.Can(ability, "read", "Post"))
	assert.True(t, permissions.Cannot(ability, "read", "Post"))
	assert.Nil(t, ability.Rules())
	assert.Nil(t, ability.User())
}

// TestPurpose: Validates the default grants seeded for well-known roles.
// Scope: Unit Test
// Expected: ADMIN manages events but cannot manage users; USER edits only owned events.
// Test Case ID: PRM-12
func TestDefaultRolePermissions(t *testing.T) {
	roles := permissions.DefaultRolePermissions()
	require.Len(t, roles, 3)

	byName := map[string]permissions.Role{}
	for _, r := range roles {
		byName[r.Name] = r
	}

	admin := permissions.BuildAbility(testUser(), []permissions.Role{byName[permissions.RoleAdmin]})
	assert.True(t, admin.Can(permissions.ActionDelete, permissions.SubjectEvent, event{ownerID: "someone"}))
	assert.True(t, admin.Can(permissions.ActionRead, permissions.SubjectRole))
	assert.False(t, admin.Can(permissions.ActionUpdate, permissions.SubjectUser))

	user := permissions.BuildAbility(testUser(), []permissions.Role{byName[permissions.RoleUser]})
	assert.True(t, user.Can(permissions.ActionCreate, permissions.SubjectEvent))
	assert.False(t, user.Can(permissions.ActionDelete, permissions.SubjectEvent, event{ownerID: "someone"}))
	assert.False(t, user.Can(permissions.ActionRead, permissions.SubjectRole))

	super := permissions.BuildAbility(nil, []permissions.Role{byName[permissions.RoleSuperAdmin]})
	assert.True(t, super.Can(permissions.ActionManage, permissions.SubjectAll))
}

// TestPurpose: Validates that the default grants cannot be altered through returned values.
// Scope: Unit Test
// Security: Process-wide defaults stay intact when a caller edits its copy
// Expected: Mutating one result leaves later results and abilities built from them unchanged.
// Test Case ID: PRM-15
func TestDefaultRolePermissions_ReturnsCopies(t *testing.T) {
	roles := permissions.DefaultRolePermissions()
	require.NotEmpty(t, roles[0].Permissions)
	roles[0].Permissions[0].Subject = "Nothing"
	roles[0].Permissions = append(roles[0].Permissions, permissions.NewPermission("manage", "User", nil))

	userPerms := permissions.DefaultPermissions(permissions.RoleUser)
	for _, p := range userPerms {
		if p.Conditions != nil {
			p.Conditions["ownerId"] = "someone-else"
		}
	}

	again := permissions.DefaultRolePermissions()
	assert.Equal(t, permissions.SubjectAll, again[0].Permissions[0].Subject)
	assert.Len(t, again[0].Permissions, 1)

	super := permissions.BuildAbility(testUser(), permissions.DefaultRolePermissions()[:1])
	assert.True(t, super.Can("read", "Post"))

	user := permissions.BuildAbility(testUser(), []permissions.Role{{
		Name:        permissions.RoleUser,
		Permissions: permissions.DefaultPermissions(permissions.RoleUser),
	}})
	assert.True(t, user.Can(permissions.ActionUpdate, permissions.SubjectEvent, event{ownerID: "1"}))

	assert.Nil(t, permissions.DefaultPermissions("UNKNOWN"))
}

// TestPurpose: Validates checks against a typed nil object.
// Scope: Unit Test
// Security: Conditional rules fail closed when the object has no fields
// Expected: No panic; conditional grants are denied while unconditional grants still apply.
// Test Case ID: PRM-16
func TestAbility_TypedNilObject(t *testing.T) {
	ability := permissions.BuildAbility(testUser(), []permissions.Role{{
		Name:        permissions.RoleUser,
		Permissions: permissions.DefaultPermissions(permissions.RoleUser),
	}})

	var missing *event
	assert.NotPanics(t, func() {
		assert.False(t, ability.Can(permissions.ActionUpdate, permissions.SubjectEvent, missing))
		assert.True(t, ability.Cannot(permissions.ActionDelete, permissions.SubjectEvent, missing))
		assert.True(t, ability.Can(permissions.ActionRead, permissions.SubjectEvent, missing))
	})

	var nilMap map[string]any
	assert.False(t, ability.Can(permissions.ActionUpdate, permissions.SubjectEvent, nilMap))
}
