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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New returns a meter from the global provider, or a no-op meter when
// metrics are disabled.
func New(cfg Config, serviceName string) *Meter {
	if !cfg.Enabled {
		return &Meter{meter: noop.NewMeterProvider().Meter(serviceName)}
	}
	return &Meter{meter: otel.Meter(serviceName)}
}

// FromMeter wraps an existing OTel meter.
func FromMeter(m metric.Meter) *Meter {
	return &Meter{meter: m}
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}

// AuthzMetrics records authorization activity.
type AuthzMetrics struct {
	checks         metric.Int64Counter
	abilitiesBuilt metric.Int64Counter
	roleLoad       metric.Float64Histogram
}

// NewAuthzMetrics registers the authorization instruments on m.
func NewAuthzMetrics(m *Meter) (*AuthzMetrics, error) {
	checks, err := m.CreateCounter("authz.checks", "Authorization checks by action, subject and outcome")
	if err != nil {
		return nil, err
	}
	built, err := m.CreateCounter("authz.abilities_built", "Abilities compiled for requests")
	if err != nil {
		return nil, err
	}
	roleLoad, err := m.CreateHistogram("authz.role_load.duration", "Time spent loading a user's roles", "ms")
	if err != nil {
		return nil, err
	}
	return &AuthzMetrics{checks: checks, abilitiesBuilt: built, roleLoad: roleLoad}, nil
}

// RecordCheck counts one can/cannot decision.
func (a *AuthzMetrics) RecordCheck(ctx context.Context, action, subject string, allowed bool) {
	if a == nil {
		return
	}
	a.checks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("subject", subject),
		attribute.Bool("allowed", allowed),
	))
}

// RecordAbilityBuilt counts one ability construction.
func (a *AuthzMetrics) RecordAbilityBuilt(ctx context.Context, anonymous bool) {
	if a == nil {
		return
	}
	a.abilitiesBuilt.Add(ctx, 1, metric.WithAttributes(attribute.Bool("anonymous", anonymous)))
}

// RecordRoleLoad records how long loading roles took.
func (a *AuthzMetrics) RecordRoleLoad(ctx context.Context, ms float64) {
	if a == nil {
		return
	}
	a.roleLoad.Record(ctx, ms)
}
