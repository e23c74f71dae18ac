package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/countdown"
	"github.com/talentgate/exam-backend/internal/model"
	"github.com/talentgate/exam-backend/internal/response"
	"github.com/talentgate/exam-backend/internal/service"
	"github.com/talentgate/exam-backend/internal/session"
	"github.com/talentgate/exam-backend/internal/validator"
	ws "github.com/talentgate/exam-backend/internal/websocket"
)

// terminalLinger is how long a finished session's socket stays open for the
// client to read the final events and close.
const terminalLinger = 5 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs the proctor stream for candidates.
type WSHandler struct {
	proctor  *service.ProctorService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(proctor *service.ProctorService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		proctor:  proctor,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ExamSession godoc
// WS /ws/v1/exam/session?token=
// Streams candidate actions and browser events into a server-owned exam
// session, and pushes state, tick and terminal events back.
func (h *WSHandler) ExamSession(c *gin.Context) {
	var q model.TokenQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	// out is set before Load, the first point a callback can fire.
	var out *ws.Writer
	var conn *websocket.Conn
	onChange := func(snap session.Snapshot) {
		_ = out.Write(ws.SnapshotEvents(snap)...)
		if snap.State == session.StateCompleted || snap.State == session.StateBlocked {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(snap.State)),
				time.Now().Add(ws.WriteWait))
			_ = conn.SetReadDeadline(time.Now().Add(terminalLinger))
		}
	}
	onTick := func(s countdown.Snapshot) {
		_ = out.Write(ws.TickEvent(s))
	}

	live, err := h.proctor.Open(c.Request.Context(), q.Token, onChange, onTick)
	if err != nil {
		failExam(c, h.log, err)
		return
	}
	defer h.proctor.Close(live)

	conn, err = h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	out = ws.NewWriter(conn)

	ctx := live.Context()
	wsLog := h.log.With().Str("assignment_id", live.AssignmentID.String()).Logger()
	wsLog.Info().Msg("Candidate connected")

	// A newer connection for the same token takes over this one.
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session opened elsewhere"),
			time.Now().Add(ws.WriteWait))
		_ = conn.Close()
	}()

	if err := live.Session.Load(ctx); err != nil {
		wsLog.Warn().Err(err).Msg("Exam session blocked")
		return
	}
	if _, err := live.Monitor.CheckReload(ctx); err != nil {
		_ = out.Error(err.Error())
	}

	for {
		select {
		case <-live.Session.Done():
			return
		default:
		}

		var req ws.Request
		if err := ws.ReadJSON(conn, &req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		if err := h.dispatch(live, out, req); err != nil {
			_ = out.Error(actionError(err))
		}
	}
}

func (h *WSHandler) dispatch(live *service.LiveSession, out *ws.Writer, req ws.Request) error {
	s := live.Session
	switch req.Action {
	case ws.ActionSelect:
		v, err := req.OptionValue()
		if err != nil {
			return err
		}
		return s.Select(req.QuestionID, v)
	case ws.ActionClear:
		return s.Select(req.QuestionID, nil)
	case ws.ActionSkip:
		return s.Skip()
	case ws.ActionNext:
		return s.Next()
	case ws.ActionSubmit:
		return s.Submit()
	case ws.ActionEvent:
		if req.Event == nil {
			return errors.New("event is required")
		}
		_, err := live.Monitor.Handle(live.Context(), *req.Event)
		return err
	case ws.ActionPing:
		return out.Write(ws.PongResponse{Event: ws.EventPong})
	default:
		return errors.New("unknown action: " + string(req.Action))
	}
}

// actionError renders a rejected action for the client.
func actionError(err error) string {
	switch {
	case errors.Is(err, session.ErrNotInProgress):
		return "exam is not in progress"
	case errors.Is(err, session.ErrClosed):
		return "session closed"
	default:
		return err.Error()
	}
}
