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

package requestctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/testwelbi/eventboard/internal/audit"
	"github.com/testwelbi/eventboard/internal/observability/logger"
	"github.com/testwelbi/eventboard/internal/observability/metrics"
	"github.com/testwelbi/eventboard/internal/permissions"
)

// Domain errors
var (
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository resolves authenticated identities
type UserRepository interface {
	// GetByID retrieves a user by ID; ErrUserNotFound when absent
	GetByID(ctx context.Context, id string) (*permissions.User, error)
}

// RoleRepository supplies the roles assigned to a user
type RoleRepository interface {
	// ListForUser returns roles in assignment order with their permissions
	ListForUser(ctx context.Context, userID string) ([]permissions.Role, error)
}

// Builder loads a user's identity and roles and compiles the request context.
type Builder struct {
	users       UserRepository
	roles       RoleRepository
	metrics     *metrics.AuthzMetrics
	auditLogger audit.Logger
}

// NewBuilder creates a request context builder. metrics may be nil.
func NewBuilder(users UserRepository, roles RoleRepository, m *metrics.AuthzMetrics, auditLogger audit.Logger) *Builder {
	return &Builder{
		users:       users,
		roles:       roles,
		metrics:     m,
		auditLogger: auditLogger,
	}
}

// Build returns a fresh context for userID. An empty userID yields the
// anonymous context without touching the repositories.
func (b *Builder) Build(ctx context.Context, userID string) (*Context, error) {
	if userID == "" {
		b.metrics.RecordAbilityBuilt(ctx, true)
		return Anonymous(), nil
	}

	user, err := b.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	start := time.Now()
	roles, err := b.roles.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	b.metrics.RecordRoleLoad(ctx, float64(time.Since(start).Microseconds())/1000)

	rc := New(user, roles)
	b.metrics.RecordAbilityBuilt(ctx, false)

	slog.DebugContext(ctx, "ability built",
		logger.UserID(user.ID),
		logger.Roles(rc.RoleNames()),
		logger.RuleCount(len(rc.Ability.Rules())),
	)
	if b.auditLogger != nil {
		b.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeAbilityBuilt,
			ActorID:  user.ID,
			Resource: "ability",
			Metadata: map[string]any{"roles": rc.RoleNames()},
		})
	}

	return rc, nil
}
