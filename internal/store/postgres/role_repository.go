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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/testwelbi/eventboard/internal/permissions"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrRoleNotFound is returned when a role name or ID does not exist
var ErrRoleNotFound = errors.New("role not found")

// RoleRepository implements requestctx.RoleRepository
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// rolePermissionsSelect aggregates each role's grants in position order.
// Roles without grants aggregate to an empty JSON array.
const rolePermissionsSelect = `
	SELECT r.id, r.name,
	       COALESCE(
	           json_agg(
	               json_build_object('action', rp.action, 'subject', rp.subject, 'conditions', rp.conditions)
	               ORDER BY rp.position
	           ) FILTER (WHERE rp.id IS NOT NULL),
	           '[]'
	       )
	FROM roles r
	LEFT JOIN role_permissions rp ON rp.role_id = r.id
`

// ListForUser returns the user's roles in assignment order
func (r *RoleRepository) ListForUser(ctx context.Context, userID string) ([]permissions.Role, error) {
	ctx, span := tracer.Start(ctx, "RoleRepository.ListForUser", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	rows, err := r.db.pool.Query(ctx, rolePermissionsSelect+`
		INNER JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		GROUP BY r.id, r.name, ur.position
		ORDER BY ur.position, r.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}

	roles, err := scanRoles(rows)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("role_count", len(roles)))
	return roles, nil
}

// List returns every role ordered by name
func (r *RoleRepository) List(ctx context.Context) ([]permissions.Role, error) {
	ctx, span := tracer.Start(ctx, "RoleRepository.List")
	defer span.End()

	rows, err := r.db.pool.Query(ctx, rolePermissionsSelect+`
		GROUP BY r.id, r.name
		ORDER BY r.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return scanRoles(rows)
}

// GetByName retrieves a role with its grants
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*permissions.Role, error) {
	ctx, span := tracer.Start(ctx, "RoleRepository.GetByName")
	defer span.End()

	rows, err := r.db.pool.Query(ctx, rolePermissionsSelect+`
		WHERE r.name = $1
		GROUP BY r.id, r.name
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	roles, err := scanRoles(rows)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, ErrRoleNotFound
	}
	return &roles[0], nil
}

// Upsert creates the role or replaces the grants of the role with the same
// name. The role's ID is set to the stored ID.
func (r *RoleRepository) Upsert(ctx context.Context, role *permissions.Role) error {
	ctx, span := tracer.Start(ctx, "RoleRepository.Upsert", trace.WithAttributes(attribute.String("role", role.Name)))
	defer span.End()

	return pgx.BeginFunc(ctx, r.db.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO roles (id, name) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET updated_at = NOW()
			RETURNING id
		`, role.ID, role.Name).Scan(&role.ID)
		if err != nil {
			return fmt.Errorf("failed to upsert role: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, role.ID); err != nil {
			return fmt.Errorf("failed to clear role permissions: %w", err)
		}

		batch := &pgx.Batch{}
		for i, p := range role.Permissions {
			var conditions []byte
			if len(p.Conditions) > 0 {
				conditions, err = json.Marshal(p.Conditions)
				if err != nil {
					return fmt.Errorf("failed to encode conditions: %w", err)
				}
			}
			batch.Queue(`
				INSERT INTO role_permissions (role_id, position, action, subject, conditions)
				VALUES ($1, $2, $3, $4, $5)
			`, role.ID, i, p.Action, p.Subject, conditions)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert role permissions: %w", err)
		}
		return nil
	})
}

// Assign grants a role to a user after any roles already assigned.
// Assigning a role twice is a no-op.
func (r *RoleRepository) Assign(ctx context.Context, userID, roleID string) error {
	ctx, span := tracer.Start(ctx, "RoleRepository.Assign")
	defer span.End()

	return pgx.BeginFunc(ctx, r.db.pool, func(tx pgx.Tx) error {
		// Serialises concurrent assignments to one user so positions stay unique.
		if _, err := tx.Exec(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, userID); err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id, position)
			VALUES ($1, $2, COALESCE((SELECT MAX(position) + 1 FROM user_roles WHERE user_id = $1), 0))
			ON CONFLICT (user_id, role_id) DO NOTHING
		`, userID, roleID)
		if err != nil {
			return fmt.Errorf("failed to assign role: %w", err)
		}
		return nil
	})
}

// Revoke removes a role from a user
func (r *RoleRepository) Revoke(ctx context.Context, userID, roleID string) error {
	ctx, span := tracer.Start(ctx, "RoleRepository.Revoke")
	defer span.End()

	if _, err := r.db.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID); err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	return nil
}

func scanRoles(rows pgx.Rows) ([]permissions.Role, error) {
	defer rows.Close()

	roles := []permissions.Role{}
	for rows.Next() {
		var role permissions.Role
		var grants []byte
		if err := rows.Scan(&role.ID, &role.Name, &grants); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		perms, err := decodePermissions(grants)
		if err != nil {
			return nil, fmt.Errorf("role %s: %w", role.Name, err)
		}
		role.Permissions = perms
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}

// decodePermissions parses the aggregated grant array. A null or empty
// payload is an empty permission list.
func decodePermissions(data []byte) ([]permissions.Permission, error) {
	perms := []permissions.Permission{}
	if len(data) == 0 || string(data) == "null" {
		return perms, nil
	}
	if err := json.Unmarshal(data, &perms); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	if perms == nil {
		perms = []permissions.Permission{}
	}
	return perms, nil
}
