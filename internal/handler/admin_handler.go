package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/middleware"
	"github.com/talentgate/exam-backend/internal/model"
	"github.com/talentgate/exam-backend/internal/response"
	"github.com/talentgate/exam-backend/internal/service"
)

// IntegrityLog reads the integrity audit trail.
type IntegrityLog interface {
	ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]model.IntegrityEvent, error)
}

// AdminHandler handles admin-specific endpoints (non-exam).
type AdminHandler struct {
	menus     *service.MenuService
	integrity IntegrityLog
	log       zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(menus *service.MenuService, integrity IntegrityLog, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		menus:     menus,
		integrity: integrity,
		log:       log.With().Str("component", "admin_handler").Logger(),
	}
}

// GetMenu godoc
// GET /api/v1/admin/menu
// Returns the navigation tree filtered by the caller's permissions.
func (h *AdminHandler) GetMenu(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"modules": h.menus.TreeFor(claims.Permissions)})
}

// ListIntegrityEvents godoc
// GET /api/v1/admin/assignments/:assignment_id/integrity-events
func (h *AdminHandler) ListIntegrityEvents(c *gin.Context) {
	id, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	events, err := h.integrity.ListByAssignment(c.Request.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("assignment_id", id.String()).Msg("Failed to list integrity events")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if events == nil {
		events = []model.IntegrityEvent{}
	}
	response.Success(c, http.StatusOK, gin.H{"events": events})
}
