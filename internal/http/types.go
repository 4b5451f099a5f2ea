package http

import (
	"github.com/fyrsmithlabs/ticketdup/internal/detector"
)

// CheckRequest is the request body for POST /api/v1/tickets/check.
type CheckRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	K    int    `json:"k,omitempty"`

	// Store upserts the ticket after the search.
	Store bool `json:"store"`

	// Threshold overrides the configured cut-off. Absent means default.
	Threshold *float64 `json:"threshold,omitempty"`
}

func (r CheckRequest) toDetector() detector.Request {
	mode := detector.QueryOnly
	if r.Store {
		mode = detector.QueryAndStore
	}
	return detector.Request{
		Document:  detector.Document{ID: r.ID, Text: r.Text},
		Mode:      mode,
		K:         r.K,
		Threshold: r.Threshold,
	}
}

// IndexRequest is the request body for POST /api/v1/index.
type IndexRequest struct {
	// Force drops an existing index and its tickets first.
	Force bool `json:"force"`
}

// IndexResponse is the response body for POST /api/v1/index.
type IndexResponse struct {
	Index   string `json:"index"`
	Created bool   `json:"created"`
	Force   bool   `json:"force"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse is returned with every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
