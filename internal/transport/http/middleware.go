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

package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/testwelbi/eventboard/internal/audit"
	"github.com/testwelbi/eventboard/internal/auth"
	"github.com/testwelbi/eventboard/internal/observability/logger"
	"github.com/testwelbi/eventboard/internal/requestctx"
	"github.com/unrolled/secure"
)

// Authorization Principles:
// 1. Every request under /api/v1 carries a freshly built request context
// 2. Abilities are never cached or shared between users
// 3. Handlers check abilities (can/cannot), not role names

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// SecurityHeaders sets the standard browser hardening headers
func SecurityHeaders(development bool) func(http.Handler) http.Handler {
	return secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'",
		IsDevelopment:         development,
	}).Handler
}

// AuthMiddleware resolves the caller and stores its request context.
// Requests without an Authorization header continue as anonymous.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID := ""
		if header := r.Header.Get("Authorization"); header != "" {
			token, ok := auth.ParseBearer(header)
			if !ok {
				h.authFailed(r, "", "malformed authorization header")
				respondError(w, http.StatusUnauthorized, "authorization header must be a bearer token")
				return
			}

			claims, err := h.verifier.Verify(token)
			if err != nil {
				h.authFailed(r, "", err.Error())
				respondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			userID = claims.Subject
		}

		rc, err := h.builder.Build(ctx, userID)
		if err != nil {
			if errors.Is(err, requestctx.ErrUserNotFound) {
				h.authFailed(r, userID, "unknown user")
				respondError(w, http.StatusUnauthorized, "unknown user")
				return
			}
			slog.ErrorContext(ctx, "failed to build request context", logger.UserID(userID), logger.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to load permissions")
			return
		}

		next.ServeHTTP(w, r.WithContext(requestctx.WithContext(ctx, rc)))
	})
}

// RequireAbility rejects requests whose ability cannot perform action on
// subject: 401 for anonymous callers, 403 otherwise.
func (h *Handler) RequireAbility(action, subject string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			rc := requestctx.FromContext(ctx)

			allowed := rc.Can(action, subject)
			h.metrics.RecordCheck(ctx, action, subject, allowed)

			if !allowed {
				h.auditLogger.Log(ctx, audit.Event{
					Type:      audit.TypeAccessDenied,
					ActorID:   rc.UserID(),
					Action:    action,
					Resource:  subject,
					Reason:    "no matching grant",
					IPAddress: requestClientIP(r),
					UserAgent: r.UserAgent(),
				})
				if rc.IsAnonymous() {
					respondError(w, http.StatusUnauthorized, "not authenticated")
					return
				}
				respondError(w, http.StatusForbidden, "access denied")
				return
			}

			h.auditLogger.Log(ctx, audit.Event{
				Type:      audit.TypeAccessGranted,
				ActorID:   rc.UserID(),
				Action:    action,
				Resource:  subject,
				IPAddress: requestClientIP(r),
				UserAgent: r.UserAgent(),
			})

			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) authFailed(r *http.Request, userID, reason string) {
	slog.WarnContext(r.Context(), "authentication failed",
		logger.UserID(userID),
		logger.Path(r.URL.Path),
		slog.String("reason", reason),
	)
	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeAuthFailed,
		ActorID:   userID,
		Resource:  r.URL.Path,
		Reason:    reason,
		IPAddress: requestClientIP(r),
		UserAgent: r.UserAgent(),
	})
}
