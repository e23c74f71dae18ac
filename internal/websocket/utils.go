package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	WriteWait = 10 * time.Second
	ReadWait  = 5 * time.Minute
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(ReadWait))
	return conn.ReadJSON(v)
}

// Writer serialises writes from the read loop, countdown ticks and
// session callbacks onto one connection.
type Writer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWriter(conn *websocket.Conn) *Writer {
	return &Writer{conn: conn}
}

// Write sends each payload in order.
func (w *Writer) Write(payloads ...any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range payloads {
		if err := WriteTyped(w.conn, p); err != nil {
			return err
		}
	}
	return nil
}

// Error sends an error event.
func (w *Writer) Error(msg string) error {
	return w.Write(ErrorResponse{Event: EventError, Error: msg})
}
