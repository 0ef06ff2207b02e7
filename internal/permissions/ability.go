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

// rule is a registered grant. Rules are matched by linear scan.
type rule struct {
	action     string
	subject    string
	conditions map[string]any
}

func (r rule) matches(action, subject string) bool {
	actionOK := r.action == action || r.action == ActionManage
	subjectOK := r.subject == subject || r.subject == SubjectAll
	return actionOK && subjectOK
}

// Ability answers authorization checks for one user.
// It is immutable once built and must not be shared between users because
// conditions may refer to the user's identity.
type Ability struct {
	user  *User
	rules []rule
}

// BuildAbility registers one rule per permission of every role, in the order
// returned by UserPermissions. A nil user is allowed; conditions that refer
// to the user then never hold. No roles yields an Ability that denies
// everything.
func BuildAbility(user *User, roles []Role) *Ability {
	perms := UserPermissions(user, roles)

	a := &Ability{rules: make([]rule, 0, len(perms))}
	if user != nil {
		u := *user
		a.user = &u
	}
	for _, p := range perms {
		a.rules = append(a.rules, rule{
			action:     p.Action,
			subject:    p.Subject,
			conditions: maps.Clone(p.Conditions),
		})
	}
	return a
}

// Can reports whether some rule grants action on subject.
//
// When an object is supplied, a matching rule's conditions must also hold
// against it. Without an object the check is type-level and conditions are
// treated as satisfied. A typed nil object (such as a nil *Event) is not
// "no object": it has no fields, so conditional rules do not match it.
// Only the first object argument is used.
func (a *Ability) Can(action, subject string, object ...any) bool {
	if a == nil {
		return false
	}

	var obj any
	if len(object) > 0 {
		obj = object[0]
	}

	for _, r := range a.rules {
		if !r.matches(action, subject) {
			continue
		}
		if obj == nil || evaluateConditions(r.conditions, obj, a.user) {
			return true
		}
	}
	return false
}

// Cannot is the negation of Can.
func (a *Ability) Cannot(action, subject string, object ...any) bool {
	return !a.Can(action, subject, object...)
}

// User returns a copy of the user the ability was built for, or nil for an
// anonymous ability.
func (a *Ability) User() *User {
	if a == nil || a.user == nil {
		return nil
	}
	u := *a.user
	return &u
}

// Rules returns the registered grants in registration order.
func (a *Ability) Rules() []Permission {
	if a == nil {
		return nil
	}
	out := make([]Permission, 0, len(a.rules))
	for _, r := range a.rules {
		out = append(out, Permission{
			Action:     r.action,
			Subject:    r.subject,
			Conditions: maps.Clone(r.conditions),
		})
	}
	return out
}

// Can is a call-site convenience for ability.Can.
func Can(ability *Ability, action, subject string, object ...any) bool {
	return ability.Can(action, subject, object...)
}

// Cannot is a call-site convenience for ability.Cannot.
func Cannot(ability *Ability, action, subject string, object ...any) bool {
	return ability.Cannot(action, subject, object...)
}
