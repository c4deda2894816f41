package websocket

import "github.com/stemsi/quiz-overview/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventSnapshot Event = "snapshot"
	EventProgress Event = "progress"
	EventPong     Event = "pong"
)

// SnapshotResponse carries the latest run of the quiz when a client connects.
type SnapshotResponse struct {
	Event Event             `json:"event"`
	Run   *model.RegradeRun `json:"run"`
}

// ProgressResponse relays one progress step of a running batch.
type ProgressResponse struct {
	Event    Event                 `json:"event"`
	Progress model.RegradeProgress `json:"progress"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
