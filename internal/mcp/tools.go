package mcp

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/ticketdup/internal/detector"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const toolTicketCheck = "ticket_check"

type ticketCheckInput struct {
	ID        string   `json:"id,omitempty" jsonschema:"Ticket ID. Required when store is true."`
	Text      string   `json:"text" jsonschema:"Ticket text to check"`
	K         int      `json:"k,omitempty" jsonschema:"Number of neighbours to return (default: configured k)"`
	Store     bool     `json:"store,omitempty" jsonschema:"Store the ticket after searching"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"Cosine distance at or below which a neighbour is a duplicate (0-2)"`
}

type neighborOutput struct {
	ID          string  `json:"id" jsonschema:"Stored ticket ID"`
	Text        string  `json:"text" jsonschema:"Stored ticket text"`
	Distance    float64 `json:"distance" jsonschema:"Cosine distance to the checked ticket"`
	IsDuplicate bool    `json:"is_duplicate" jsonschema:"Distance is within the threshold"`
}

type ticketCheckOutput struct {
	ID         string           `json:"id" jsonschema:"Checked ticket ID"`
	Neighbors  []neighborOutput `json:"neighbors" jsonschema:"Nearest stored tickets, closest first"`
	Duplicate  bool             `json:"duplicate" jsonschema:"The closest neighbour is a duplicate"`
	Closest    *neighborOutput  `json:"closest,omitempty" jsonschema:"Closest neighbour"`
	Threshold  float64          `json:"threshold" jsonschema:"Threshold applied"`
	K          int              `json:"k" jsonschema:"Neighbour count applied"`
	Stored     bool             `json:"stored" jsonschema:"The ticket was stored"`
	StoreError string           `json:"store_error,omitempty" jsonschema:"Why storing failed"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolTicketCheck,
		Description: "Check whether a support ticket is a near-duplicate of a stored ticket, optionally storing it",
	}, s.handleTicketCheck)
}

func (s *Server) handleTicketCheck(ctx context.Context, _ *mcp.CallToolRequest, args ticketCheckInput) (*mcp.CallToolResult, ticketCheckOutput, error) {
	done := s.metrics.Start(ctx, toolTicketCheck)

	mode := detector.QueryOnly
	if args.Store {
		mode = detector.QueryAndStore
	}
	report, err := s.checker.Check(ctx, detector.Request{
		Document:  detector.Document{ID: args.ID, Text: args.Text},
		Mode:      mode,
		K:         args.K,
		Threshold: args.Threshold,
	})
	done(report, err)
	if err != nil {
		s.logger.Warn(ctx, "ticket check failed", zap.Error(err))
		return nil, ticketCheckOutput{}, fmt.Errorf("ticket check failed: %w", err)
	}

	out := toOutput(report)
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summarize(report)},
		},
	}, out, nil
}

func toOutput(r *detector.Report) ticketCheckOutput {
	out := ticketCheckOutput{
		ID:        r.ID,
		Neighbors: make([]neighborOutput, len(r.Neighbors)),
		Duplicate: r.Duplicate,
		Threshold: r.Threshold,
		K:         r.K,
		Stored:    r.Stored,
	}
	for i, n := range r.Neighbors {
		out.Neighbors[i] = neighborOutput(n)
	}
	if r.Closest != nil {
		c := neighborOutput(*r.Closest)
		out.Closest = &c
	}
	if r.StoreErr != nil {
		out.StoreError = r.StoreErr.Error()
	}
	return out
}

// summarize renders the report as one line for clients that ignore
// structured content.
func summarize(r *detector.Report) string {
	var msg string
	switch {
	case r.Closest == nil:
		msg = "No stored tickets to compare against"
	case r.Duplicate:
		msg = fmt.Sprintf("Duplicate of %s (distance %.4f <= %.4f)", r.Closest.ID, r.Closest.Distance, r.Threshold)
	default:
		msg = fmt.Sprintf("Not a duplicate; closest is %s (distance %.4f > %.4f)", r.Closest.ID, r.Closest.Distance, r.Threshold)
	}
	if r.Stored {
		msg += "; stored"
	}
	if r.StoreErr != nil {
		msg += "; store failed: " + r.StoreErr.Error()
	}
	return msg
}
