package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/middleware"
	"github.com/talentgate/exam-backend/internal/model"
	"github.com/talentgate/exam-backend/internal/response"
	"github.com/talentgate/exam-backend/internal/service"
	ws "github.com/talentgate/exam-backend/internal/websocket"
)

const notificationPingInterval = 30 * time.Second

// NotificationHandler serves the admin notification badge.
type NotificationHandler struct {
	notifications *service.NotificationService
	log           zerolog.Logger
	upgrader      websocket.Upgrader
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationService, log zerolog.Logger, allowedOrigins []string) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		log:           log.With().Str("component", "notification_handler").Logger(),
		upgrader:      buildUpgrader(allowedOrigins),
	}
}

// List godoc
// GET /api/v1/admin/notifications?page=&per_page=
func (h *NotificationHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	items, pagination, err := h.notifications.List(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		h.log.Error().Err(err).Int("admin_id", claims.UserID).Msg("Failed to list notifications")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if items == nil {
		items = []model.Notification{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"notifications": items}, pagination)
}

// MarkRead godoc
// POST /api/v1/admin/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	unread, err := h.notifications.MarkRead(c.Request.Context(), claims.UserID, id)
	if err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Int64("notification_id", id).Msg("Failed to mark notification read")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unread": unread})
}

// UnreadCount godoc
// GET /api/v1/admin/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	n, err := h.notifications.UnreadCount(c.Request.Context(), claims.UserID)
	if err != nil {
		h.log.Error().Err(err).Int("admin_id", claims.UserID).Msg("Failed to count unread notifications")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unread": n})
}

// Stream godoc
// WS /ws/v1/admin/notifications?token=
// Sends the unread count on connect, then every new notification.
func (h *NotificationHandler) Stream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	adminID := claims.UserID
	wsLog := h.log.With().Int("admin_id", adminID).Logger()
	out := ws.NewWriter(conn)

	sub := h.notifications.Subscribe(ctx, adminID)
	defer sub.Close()

	unread, err := h.notifications.UnreadCount(ctx, adminID)
	if err != nil {
		wsLog.Warn().Err(err).Msg("Unread count unavailable")
	}
	if err := out.Write(ws.UnreadResponse{Event: ws.EventUnread, Unread: unread}); err != nil {
		return
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(ws.ReadWait))
	})

	// The read loop only detects disconnects and answers pings.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var req ws.Request
			if err := ws.ReadJSON(conn, &req); err != nil {
				return
			}
			if req.Action == ws.ActionPing {
				_ = out.Write(ws.PongResponse{Event: ws.EventPong})
			}
		}
	}()

	ping := time.NewTicker(notificationPingInterval)
	defer ping.Stop()
	msgs := sub.Channel()

	wsLog.Debug().Msg("Admin subscribed to notifications")
	for {
		select {
		case <-closed:
			wsLog.Debug().Msg("Admin notification stream closed")
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ws.WriteWait)); err != nil {
				return
			}
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var push model.NotificationPush
			if err := json.Unmarshal([]byte(msg.Payload), &push); err != nil {
				wsLog.Warn().Err(err).Msg("Dropping malformed notification push")
				continue
			}
			if err := out.Write(ws.NotificationResponse{
				Event:        ws.EventNotification,
				Notification: push.Notification,
				Unread:       push.Unread,
			}); err != nil {
				return
			}
		}
	}
}
