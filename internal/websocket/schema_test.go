package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentgate/exam-backend/internal/countdown"
	"github.com/talentgate/exam-backend/internal/model"
	"github.com/talentgate/exam-backend/internal/session"
)

func TestOptionValue(t *testing.T) {
	tests := []struct {
		raw     string
		want    *string
		wantErr bool
	}{
		{`{"action":"select","questionId":1,"option":" Paris "}`, ptr("Paris"), false},
		{`{"action":"select","questionId":1,"option":4}`, ptr("4"), false},
		{`{"action":"select","questionId":1,"option":2.5}`, ptr("2.5"), false},
		{`{"action":"select","questionId":1,"option":true}`, ptr("true"), false},
		{`{"action":"select","questionId":1,"option":null}`, nil, false},
		{`{"action":"clear","questionId":1}`, nil, false},
		{`{"action":"select","questionId":1,"option":["a"]}`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var req Request
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &req))
			got, err := req.OptionValue()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSnapshotEvents(t *testing.T) {
	assert.Len(t, SnapshotEvents(session.Snapshot{State: session.StateInProgress}), 1)

	events := SnapshotEvents(session.Snapshot{State: session.StateCompleted, SubmissionType: model.SubmissionAuto, Reason: "window_blur"})
	require.Len(t, events, 2)
	assert.Equal(t, CompletedResponse{Event: EventCompleted, SubmissionType: model.SubmissionAuto, Reason: "window_blur"}, events[1])

	events = SnapshotEvents(session.Snapshot{State: session.StateBlocked, Error: "exam has no questions"})
	require.Len(t, events, 2)
	assert.Equal(t, BlockedResponse{Event: EventBlocked, Error: "exam has no questions"}, events[1])
}

func TestTickEventFlattensSnapshot(t *testing.T) {
	ev := TickEvent(countdown.Snapshot{Key: "q1", Limit: 20, Left: 5, Percent: 25, Level: countdown.LevelCritical})
	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "tick", m["event"])
	assert.EqualValues(t, 5, m["left"])
	assert.Equal(t, "critical", m["level"])
	assert.Equal(t, "0:05", m["bar"].(map[string]any)["label"])
}

func ptr(s string) *string { return &s }
