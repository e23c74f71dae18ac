package websocket

import (
	"encoding/json"
	"errors"

	"github.com/talentgate/exam-backend/internal/countdown"
	"github.com/talentgate/exam-backend/internal/integrity"
	"github.com/talentgate/exam-backend/internal/model"
	"github.com/talentgate/exam-backend/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect Action = "select"
	ActionClear  Action = "clear"
	ActionSkip   Action = "skip"
	ActionNext   Action = "next"
	ActionSubmit Action = "submit"
	ActionEvent  Action = "event"
	ActionPing   Action = "ping"
)

// Request is one inbound proctor message. Only the fields of the named
// action are read.
type Request struct {
	Action Action `json:"action"`
	// QuestionID and Option carry select and clear. Option is any JSON
	// scalar; it is compared as its string form.
	QuestionID int             `json:"questionId,omitempty"`
	Option     json.RawMessage `json:"option,omitempty"`
	// Event carries a raw browser event for ActionEvent.
	Event *integrity.BrowserEvent `json:"event,omitempty"`
}

// OptionValue decodes the option of a select action. An absent or null
// option yields nil, which clears the response.
func (r Request) OptionValue() (*string, error) {
	if len(r.Option) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(r.Option, &v); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	switch v.(type) {
	case map[string]any, []any:
		return nil, errors.New("option must be a scalar")
	}
	s := session.FormatOption(v)
	return &s, nil
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventTick      Event = "tick"
	EventCompleted Event = "completed"
	EventBlocked   Event = "blocked"
	EventError     Event = "error"
	EventPong      Event = "pong"

	EventNotification Event = "notification"
	EventUnread       Event = "unread"
)

type StateResponse struct {
	Event Event            `json:"event"`
	State session.Snapshot `json:"state"`
}

type TickResponse struct {
	Event Event `json:"event"`
	countdown.Snapshot
	Ring countdown.RingView `json:"ring"`
	Bar  countdown.BarView  `json:"bar"`
}

type CompletedResponse struct {
	Event          Event                `json:"event"`
	SubmissionType model.SubmissionType `json:"submissionType"`
	Reason         string               `json:"reason,omitempty"`
	Assumed        bool                 `json:"assumed,omitempty"`
}

type BlockedResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

type NotificationResponse struct {
	Event        Event              `json:"event"`
	Notification model.Notification `json:"notification"`
	Unread       int64              `json:"unread"`
}

type UnreadResponse struct {
	Event  Event `json:"event"`
	Unread int64 `json:"unread"`
}

// SnapshotEvents renders a session snapshot as the events a client
// expects: always a state event, followed by completed or blocked once the
// session is terminal.
func SnapshotEvents(snap session.Snapshot) []any {
	out := []any{StateResponse{Event: EventState, State: snap}}
	switch snap.State {
	case session.StateCompleted:
		out = append(out, CompletedResponse{
			Event:          EventCompleted,
			SubmissionType: snap.SubmissionType,
			Reason:         snap.Reason,
			Assumed:        snap.Assumed,
		})
	case session.StateBlocked:
		out = append(out, BlockedResponse{Event: EventBlocked, Error: snap.Error})
	}
	return out
}

// TickEvent renders a countdown snapshot with ring and bar geometry.
func TickEvent(s countdown.Snapshot) TickResponse {
	return TickResponse{Event: EventTick, Snapshot: s, Ring: countdown.Ring(s, RingRadius), Bar: countdown.Bar(s)}
}

// RingRadius is the timer ring radius the exam UI draws.
const RingRadius = 45
