package http

import (
	"log/slog"
	"net/http"

	"github.com/testwelbi/eventboard/internal/observability/logger"
	"github.com/testwelbi/eventboard/internal/permissions"
	"github.com/testwelbi/eventboard/internal/requestctx"
)

// UserResponse describes the authenticated caller
type UserResponse struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// PermissionsResponse lists the flattened grants of the caller
type PermissionsResponse struct {
	UserID      string                   `json:"userId,omitempty"`
	Anonymous   bool                     `json:"anonymous"`
	Roles       []string                 `json:"roles"`
	Permissions []permissions.Permission `json:"permissions"`
}

// CheckResponse is the answer to a single ability check
type CheckResponse struct {
	Action  string `json:"action"`
	Subject string `json:"subject"`
	Allowed bool   `json:"allowed"`
}

// GetCurrentUser returns the authenticated user and role names
// @Summary Current user
// @Tags Me
// @Security BearerAuth
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} map[string]string
// @Router /me [get]
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	rc := requestctx.FromContext(r.Context())
	if rc.IsAnonymous() {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	respondJSON(w, http.StatusOK, UserResponse{
		ID:    rc.User.ID,
		Email: rc.User.Email,
		Name:  rc.User.Name,
		Roles: rc.RoleNames(),
	})
}

// GetPermissions returns the caller's flattened permission list
// @Summary Current permissions
// @Tags Me
// @Security BearerAuth
// @Produce json
// @Success 200 {object} PermissionsResponse
// @Router /me/permissions [get]
func (h *Handler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	rc := requestctx.FromContext(r.Context())

	respondJSON(w, http.StatusOK, PermissionsResponse{
		UserID:      rc.UserID(),
		Anonymous:   rc.IsAnonymous(),
		Roles:       rc.RoleNames(),
		Permissions: rc.Permissions(),
	})
}

// CheckAbility answers whether the caller can perform action on subject
// @Summary Check ability
// @Tags Me
// @Security BearerAuth
// @Produce json
// @Param action query string true "Action"
// @Param subject query string true "Subject"
// @Success 200 {object} CheckResponse
// @Failure 400 {object} map[string]string
// @Router /me/can [get]
func (h *Handler) CheckAbility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	action := r.URL.Query().Get("action")
	subject := r.URL.Query().Get("subject")
	if action == "" || subject == "" {
		respondError(w, http.StatusBadRequest, "action and subject are required")
		return
	}

	rc := requestctx.FromContext(ctx)
	allowed := rc.Can(action, subject)
	h.metrics.RecordCheck(ctx, action, subject, allowed)

	slog.DebugContext(ctx, "ability check",
		logger.UserID(rc.UserID()),
		logger.Action(action),
		logger.Subject(subject),
		logger.Allowed(allowed),
	)

	respondJSON(w, http.StatusOK, CheckResponse{
		Action:  action,
		Subject: subject,
		Allowed: allowed,
	})
}

// ListRoles returns every defined role with its grants
// @Summary List roles
// @Tags Roles
// @Security BearerAuth
// @Produce json
// @Success 200 {array} permissions.Role
// @Failure 403 {object} map[string]string
// @Router /roles [get]
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list roles", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list roles")
		return
	}
	if roles == nil {
		roles = []permissions.Role{}
	}

	respondJSON(w, http.StatusOK, roles)
}
