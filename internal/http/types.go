package http

import (
	"github.com/fyrsmithlabs/cortex/internal/session"
	"github.com/fyrsmithlabs/cortex/internal/tension"
	"github.com/fyrsmithlabs/cortex/internal/telemetry"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status    string                  `json:"status"`
	Version   string                  `json:"version,omitempty"`
	Sessions  int                     `json:"sessions"`
	Tensions  int                     `json:"tensions"`
	Access    bool                    `json:"access"`
	Pattern   string                  `json:"pattern,omitempty"`
	Telemetry *telemetry.HealthStatus `json:"telemetry,omitempty"`
}

// ThoughtRequest is the request body for POST /api/v1/thoughts.
type ThoughtRequest struct {
	Text string `json:"text" validate:"required,notblank,max=10000"`
}

// SessionsResponse is the response body for GET /api/v1/sessions.
type SessionsResponse struct {
	Order    string            `json:"order"`
	Count    int               `json:"count"`
	Sessions []session.Session `json:"sessions"`
}

// PatternResponse is the response body for GET /api/v1/patterns/core-tension.
type PatternResponse struct {
	Found       bool   `json:"found"`
	CoreTension string `json:"coreTension,omitempty"`
}

// DriftResponse is the response body for GET /api/v1/patterns/drift.
type DriftResponse struct {
	Found bool           `json:"found"`
	Drift *tension.Drift `json:"drift,omitempty"`
}

// NoteRequest is the request body for PUT /api/v1/nodes/:id/note. An empty
// note deletes it.
type NoteRequest struct {
	Note string `json:"note" validate:"max=4096"`
}

// NoteResponse is the response body for the note endpoints.
type NoteResponse struct {
	NodeID string `json:"nodeId"`
	Note   string `json:"note"`
}

// InviteResponse is the response body for POST /api/v1/invite/:code.
type InviteResponse struct {
	Access bool `json:"access"`
}
