package detector

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidRequest indicates a request the detector refuses before any
// provider or store call.
var ErrInvalidRequest = errors.New("invalid request")

// Mode selects whether a check also persists the ticket.
type Mode int

const (
	// QueryOnly searches for neighbours without storing the ticket.
	QueryOnly Mode = iota

	// QueryAndStore searches, then upserts the ticket's embedding.
	QueryAndStore
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case QueryOnly:
		return "query_only"
	case QueryAndStore:
		return "query_and_store"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Document is a ticket submitted for checking.
type Document struct {
	// ID identifies the ticket. Required in QueryAndStore mode.
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Request is one duplicate check.
type Request struct {
	Document Document
	Mode     Mode

	// K is the number of neighbours to report. Zero uses the detector default.
	K int

	// Threshold is the inclusive duplicate cut-off on cosine distance.
	// Nil uses the detector default; 0 is a valid threshold.
	Threshold *float64
}

// Neighbor is one stored ticket close to the checked document.
type Neighbor struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	Distance    float64 `json:"distance"`
	IsDuplicate bool    `json:"is_duplicate"`
}

// Report is the outcome of a check.
type Report struct {
	ID        string     `json:"id"`
	Neighbors []Neighbor `json:"neighbors"`

	// Duplicate is true iff the closest neighbour is within the threshold.
	Duplicate bool      `json:"duplicate"`
	Closest   *Neighbor `json:"closest,omitempty"`
	Threshold float64   `json:"threshold"`
	K         int       `json:"k"`

	Stored bool `json:"stored"`

	// StoreErr is the insert failure in QueryAndStore mode. The neighbours
	// are still valid when it is set.
	StoreErr error `json:"-"`
}

// MarshalJSON adds store_error when StoreErr is set.
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	out := struct {
		plain
		StoreError string `json:"store_error,omitempty"`
	}{plain: plain(r)}
	if r.StoreErr != nil {
		out.StoreError = r.StoreErr.Error()
	}
	return json.Marshal(out)
}
