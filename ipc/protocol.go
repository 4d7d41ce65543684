// Package ipc implements the player's control socket: newline-delimited JSON
// over a unix socket.
//
// A request names a command and an optional id echoed in the reply:
//
//	{"command": ["cycle", "pause"], "request_id": 7}
//	{"error": "success", "request_id": 7}
//
// Events are pushed to every connection as {"event": "<name>"}.
package ipc

import (
	"errors"
	"fmt"
	"strconv"
)

const success = "success"

var (
	// ErrClosed is returned by a Client whose connection is gone.
	ErrClosed = errors.New("ipc connection closed")

	// ErrCommand wraps an error reply from the server.
	ErrCommand = errors.New("command failed")
)

// Request is one line sent to the server.
type Request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id,omitzero"`
}

// message is any line sent by the server: a reply or an event.
type message struct {
	Event     string `json:"event,omitzero"`
	Error     string `json:"error,omitzero"`
	Data      any    `json:"data,omitempty"`
	RequestID int64  `json:"request_id,omitzero"`
}

// args converts the command array to strings. Numbers and booleans are
// accepted so that {"command": ["set", "volume", 50]} works.
func (r *Request) args() ([]string, error) {
	args := make([]string, 0, len(r.Command))
	for i, v := range r.Command {
		switch v := v.(type) {
		case string:
			args = append(args, v)
		case float64:
			args = append(args, strconv.FormatFloat(v, 'g', -1, 64))
		case bool:
			if v {
				args = append(args, "yes")
			} else {
				args = append(args, "no")
			}
		default:
			return nil, fmt.Errorf("invalid argument %d: %v", i, v)
		}
	}
	return args, nil
}
