// Package wsproto defines the tagged JSON message types exchanged over the
// hub's WebSocket endpoints (spec.md §4.5, §6). It replaces free-form
// map[string]any decoding with a finite, explicitly validated set of
// client→server and server→client variants.
package wsproto

import (
	"encoding/json"
	"fmt"
)

// ClientMessage is one frame sent by a browser. Which of the typed fields
// are populated depends on Type: Cols/Rows for init and resize, Data for
// input.
type ClientMessage struct {
	Type string `json:"type"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
	Data string `json:"data,omitempty"`
}

const (
	ClientInit   = "init"
	ClientInput  = "input"
	ClientResize = "resize"
	ClientPing   = "ping"
	ClientKill   = "kill"
)

var validClientTypes = map[string]bool{
	ClientInit:   true,
	ClientInput:  true,
	ClientResize: true,
	ClientPing:   true,
	ClientKill:   true,
}

// ErrUnknownType is returned by ParseClientMessage for any tag outside the
// finite set spec.md §4.5 enumerates.
type ErrUnknownType struct{ Type string }

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("wsproto: unknown message type %q", e.Type)
}

// ParseClientMessage decodes raw into a ClientMessage, rejecting both
// malformed JSON and tags outside the protocol's finite set.
func ParseClientMessage(raw []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, err
	}
	if !validClientTypes[msg.Type] {
		return ClientMessage{}, &ErrUnknownType{Type: msg.Type}
	}
	return msg, nil
}

// Server→client variants (spec.md §4.5). Each constructor returns the
// already-marshaled frame; callers write it directly to the socket.

type readyFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	IsNew     *bool  `json:"isNew,omitempty"`
}

// Ready builds a {type:"ready"} frame. sessionID is empty for the dev
// terminal, which has no session identity; isNew is nil for named sessions
// (only the dev terminal distinguishes first-spawn from join).
func Ready(sessionID string, isNew *bool) []byte {
	b, _ := json.Marshal(readyFrame{Type: "ready", SessionID: sessionID, IsNew: isNew})
	return b
}

type outputFrame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// Output builds a {type:"output", data} frame carrying a raw PTY chunk.
func Output(data []byte) []byte {
	b, _ := json.Marshal(outputFrame{Type: "output", Data: string(data)})
	return b
}

type historyFrame struct {
	Type string   `json:"type"`
	Data []string `json:"data"`
}

// History builds a {type:"history", data:[chunk,...]} frame. A nil or
// empty chunk yields data:[] rather than data:null.
func History(chunk []byte) []byte {
	data := []string{}
	if len(chunk) > 0 {
		data = append(data, string(chunk))
	}
	b, _ := json.Marshal(historyFrame{Type: "history", Data: data})
	return b
}

type statusFrame struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	SessionID string `json:"sessionId,omitempty"`
}

// Status builds a {type:"status", status, sessionId} frame.
func Status(status, sessionID string) []byte {
	b, _ := json.Marshal(statusFrame{Type: "status", Status: status, SessionID: sessionID})
	return b
}

type exitFrame struct {
	Type   string `json:"type"`
	Code   int    `json:"code"`
	Signal *int   `json:"signal,omitempty"`
}

// Exit builds a {type:"exit", code, signal?} frame.
func Exit(code int, signal *int) []byte {
	b, _ := json.Marshal(exitFrame{Type: "exit", Code: code, Signal: signal})
	return b
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Error builds a {type:"error", message} frame.
func Error(message string) []byte {
	b, _ := json.Marshal(errorFrame{Type: "error", Message: message})
	return b
}

type killedFrame struct {
	Type string `json:"type"`
}

// Killed builds the dev-terminal-only {type:"killed"} acknowledgment.
func Killed() []byte {
	b, _ := json.Marshal(killedFrame{Type: "killed"})
	return b
}

type pongFrame struct {
	Type string `json:"type"`
}

// Pong builds a {type:"pong"} frame.
func Pong() []byte {
	b, _ := json.Marshal(pongFrame{Type: "pong"})
	return b
}
