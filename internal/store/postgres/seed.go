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

package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/testwelbi/eventboard/internal/observability/logger"
	"github.com/testwelbi/eventboard/internal/permissions"
)

// RoleWriter is the subset of RoleRepository used for seeding
type RoleWriter interface {
	Upsert(ctx context.Context, role *permissions.Role) error
}

// SeedDefaultRoles installs the well-known roles and their grants. Existing
// roles keep their IDs and have their grants replaced.
func SeedDefaultRoles(ctx context.Context, roles RoleWriter) ([]permissions.Role, error) {
	return SeedRoles(ctx, roles, permissions.DefaultRolePermissions())
}

// SeedRoles upserts each role in order and returns them with their stored IDs.
func SeedRoles(ctx context.Context, roles RoleWriter, defs []permissions.Role) ([]permissions.Role, error) {
	seeded := make([]permissions.Role, len(defs))
	copy(seeded, defs)
	for i := range seeded {
		if seeded[i].ID == "" {
			seeded[i].ID = uuid.NewString()
		}
		if err := roles.Upsert(ctx, &seeded[i]); err != nil {
			return nil, fmt.Errorf("failed to seed role %s: %w", seeded[i].Name, err)
		}
		slog.InfoContext(ctx, "seeded role",
			logger.Component("seed"),
			slog.String("role", seeded[i].Name),
			logger.RuleCount(len(seeded[i].Permissions)),
		)
	}
	return seeded, nil
}
