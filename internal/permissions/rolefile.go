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

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ErrInvalidRoleFile is returned when a role definition file is malformed.
var ErrInvalidRoleFile = errors.New("invalid role file")

// roleFile is the on-disk layout of role definitions:
//
//	roles:
//	  - name: USER
//	    permissions:
//	      - action: update
//	        subject: Event
//	        conditions:
//	          ownerId: ${user.id}
type roleFile struct {
	Roles []struct {
		Name        string `yaml:"name"`
		Permissions []struct {
			Action     string         `yaml:"action"`
			Subject    string         `yaml:"subject"`
			Conditions map[string]any `yaml:"conditions"`
		} `yaml:"permissions"`
	} `yaml:"roles"`
}

// LoadRoles parses role definitions in file order. Role names must be unique
// and every grant needs an action and a subject. Role IDs are left empty.
func LoadRoles(r io.Reader) ([]Role, error) {
	var f roleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoleFile, err)
	}

	seen := make(map[string]bool, len(f.Roles))
	roles := make([]Role, 0, len(f.Roles))
	for i, def := range f.Roles {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: role %d has no name", ErrInvalidRoleFile, i)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("%w: duplicate role %s", ErrInvalidRoleFile, def.Name)
		}
		seen[def.Name] = true

		role := Role{Name: def.Name, Permissions: make([]Permission, 0, len(def.Permissions))}
		for j, p := range def.Permissions {
			if p.Action == "" || p.Subject == "" {
				return nil, fmt.Errorf("%w: role %s grant %d needs action and subject", ErrInvalidRoleFile, def.Name, j)
			}
			role.Permissions = append(role.Permissions, NewPermission(p.Action, p.Subject, p.Conditions))
		}
		roles = append(roles, role)
	}
	return roles, nil
}
