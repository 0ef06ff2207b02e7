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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/testwelbi/eventboard/internal/audit"
	"github.com/testwelbi/eventboard/internal/auth"
	"github.com/testwelbi/eventboard/internal/config"
	"github.com/testwelbi/eventboard/internal/observability/logger"
	"github.com/testwelbi/eventboard/internal/observability/metrics"
	"github.com/testwelbi/eventboard/internal/observability/tracing"
	"github.com/testwelbi/eventboard/internal/permissions"
	"github.com/testwelbi/eventboard/internal/requestctx"
	"github.com/testwelbi/eventboard/internal/store/postgres"
	transportHTTP "github.com/testwelbi/eventboard/internal/transport/http"
)

const usage = `usage: eventboard [command]

commands:
  (none)                          run the HTTP server
  migrate                         apply the database schema
  seed [--file roles.yaml]        install the default roles, or the roles defined in a file
  grant <email> <name> <role>...  create the user if needed, assign roles and print a token
  token <email>                   print a bearer token for an existing user
`

func main() {
	// A local .env is optional; real environment variables take precedence
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	// Phase: CLI Commands
	if len(os.Args) > 1 {
		if err := runCommand(cfg, os.Args[1], os.Args[2:]); err != nil {
			fmt.Printf("%s failed: %v\n", os.Args[1], err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	slog.Info("starting eventboard authorization service")
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer, continuing without tracing", logger.Error(err))
		tracer, _ = tracing.New(ctx, tracing.Config{ServiceName: cfg.Observability.ServiceName})
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter := metrics.New(metrics.Config{Enabled: cfg.Observability.OTELEnabled}, cfg.Observability.ServiceName)
	authzMetrics, err := metrics.NewAuthzMetrics(meter)
	if err != nil {
		slog.Error("failed to register authorization metrics", logger.Error(err))
	}

	// Initialize database
	db, err := openDB(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	roleRepo := postgres.NewRoleRepository(db)

	// Initialize services
	auditLogger := audit.NewSlogLogger(nil)
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		slog.Error("failed to initialize token service", logger.Error(err))
		os.Exit(1)
	}
	builder := requestctx.NewBuilder(userRepo, roleRepo, authzMetrics, auditLogger)

	// Initialize HTTP
	handler := transportHTTP.NewHandler(tokens, builder, roleRepo, auditLogger, authzMetrics, cfg.Observability.ServiceName)
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.TrustProxy)
	defer rateLimiter.Stop()

	router := transportHTTP.NewRouter(handler, rateLimiter, transportHTTP.RouterConfig{
		Development:    cfg.Server.IsDevelopment(),
		AllowedOrigins: cfg.Server.CORSOrigins,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runCommand(cfg *config.Config, name string, args []string) error {
	switch name {
	case "migrate":
		return runMigrate(cfg)
	case "seed":
		flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
		file := flagSet.StringP("file", "f", "", "YAML role definitions (default: built-in roles)")
		if err := flagSet.Parse(args); err != nil {
			return err
		}
		return runSeed(cfg, *file)
	case "grant":
		if len(args) < 3 {
			return errors.New("grant needs <email> <name> <role>")
		}
		return runGrant(cfg, args[0], args[1], args[2:])
	case "token":
		if len(args) != 1 {
			return errors.New("token needs <email>")
		}
		return runToken(cfg, args[0])
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command %q", name)
	}
}

func openDB(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	return postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}

func runSeed(cfg *config.Config, file string) error {
	defs := permissions.DefaultRolePermissions()
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defs, err = permissions.LoadRoles(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	ctx := context.Background()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	roles, err := postgres.SeedRoles(ctx, postgres.NewRoleRepository(db), defs)
	if err != nil {
		return err
	}
	for _, r := range roles {
		fmt.Printf("%s\t%s\t%d permissions\n", r.ID, r.Name, len(r.Permissions))
	}
	return nil
}

func runGrant(cfg *config.Config, email, name string, roleNames []string) error {
	ctx := context.Background()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	users := postgres.NewUserRepository(db)
	roles := postgres.NewRoleRepository(db)

	user, err := users.GetByEmail(ctx, email)
	if errors.Is(err, requestctx.ErrUserNotFound) {
		user = &permissions.User{ID: uuid.NewString(), Email: email, Name: name}
		err = users.Create(ctx, user)
	}
	if err != nil {
		return err
	}

	auditLogger := audit.NewSlogLogger(nil)
	for _, roleName := range roleNames {
		role, err := roles.GetByName(ctx, roleName)
		if err != nil {
			return fmt.Errorf("role %s: %w", roleName, err)
		}
		if err := roles.Assign(ctx, user.ID, role.ID); err != nil {
			return err
		}
		auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeRoleAssigned,
			ActorID:  "cli",
			Resource: user.ID,
			Metadata: map[string]any{"role": role.Name},
		})
	}

	return printToken(cfg, user)
}

func runToken(cfg *config.Config, email string) error {
	ctx := context.Background()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := postgres.NewUserRepository(db).GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return printToken(cfg, user)
}

func printToken(cfg *config.Config, user *permissions.User) error {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	token, err := tokens.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		return err
	}
	fmt.Printf("user:  %s\ntoken: %s\n", user.ID, token)
	return nil
}
