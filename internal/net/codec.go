package net

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// maxMessageSize bounds one inbound frame.
const maxMessageSize = 64 << 10

// readMessage reads one frame. Only binary frames carry envelopes; text
// frames are skipped and returned as nil.
func readMessage(conn *websocket.Conn) ([]byte, error) {
	typ, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	if typ != websocket.BinaryMessage || len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// writeMessage writes data as one binary frame.
func writeMessage(conn *websocket.Conn, data []byte, timeout time.Duration) error {
	if err := conn.SetWriteDeadline(deadline(timeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("write frame (%d bytes): %w", len(data), err)
	}
	return nil
}

func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
