// Package events publishes duplicate-check results to NATS.
//
// Every check produces one message on "<prefix>.checked":
//
//	{"id":"1234","duplicate":true,"closest_id":"987","closest_distance":0.0121,
//	 "threshold":0.03,"stored":true,"checked_at":"2024-05-01T10:00:00Z"}
//
// The request id, when the context carries one, is sent in the Request-Id
// header.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ticketdup/internal/config"
	"github.com/fyrsmithlabs/ticketdup/internal/detector"
	"github.com/fyrsmithlabs/ticketdup/internal/logging"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// RequestIDHeader carries the originating request id.
const RequestIDHeader = "Request-Id"

// CheckedEvent is the payload published after a check.
type CheckedEvent struct {
	ID              string    `json:"id"`
	Duplicate       bool      `json:"duplicate"`
	ClosestID       string    `json:"closest_id,omitempty"`
	ClosestDistance *float64  `json:"closest_distance,omitempty"`
	Threshold       float64   `json:"threshold"`
	Stored          bool      `json:"stored"`
	CheckedAt       time.Time `json:"checked_at"`
}

// NewCheckedEvent builds the event for r.
func NewCheckedEvent(r *detector.Report, at time.Time) CheckedEvent {
	ev := CheckedEvent{
		ID:        r.ID,
		Duplicate: r.Duplicate,
		Threshold: r.Threshold,
		Stored:    r.Stored,
		CheckedAt: at.UTC(),
	}
	if r.Closest != nil {
		dist := r.Closest.Distance
		ev.ClosestID = r.Closest.ID
		ev.ClosestDistance = &dist
	}
	return ev
}

// Publisher implements detector.Publisher over a NATS connection.
type Publisher struct {
	nc      *nats.Conn
	subject string
	owned   bool
	now     func() time.Time
	logger  *logging.Logger
}

var _ detector.Publisher = (*Publisher)(nil)

// NewPublisher publishes on an existing connection. Close does not close nc.
func NewPublisher(nc *nats.Conn, subjectPrefix string, logger *logging.Logger) (*Publisher, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection cannot be nil")
	}
	if subjectPrefix == "" {
		return nil, fmt.Errorf("subject prefix cannot be empty")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{
		nc:      nc,
		subject: subjectPrefix + ".checked",
		now:     time.Now,
		logger:  logger.Named("events"),
	}, nil
}

// Connect dials cfg.URL and returns a Publisher owning the connection.
func Connect(cfg config.EventsConfig, logger *logging.Logger) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("ticketdup"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	p, err := NewPublisher(nc, cfg.SubjectPrefix, logger)
	if err != nil {
		nc.Close()
		return nil, err
	}
	p.owned = true
	p.logger.Info(context.Background(), "connected to NATS", zap.String("url", cfg.URL))
	return p, nil
}

// Subject returns the subject events are published on.
func (p *Publisher) Subject() string {
	return p.subject
}

// Publish sends the checked event for r.
func (p *Publisher) Publish(ctx context.Context, r *detector.Report) error {
	data, err := json.Marshal(NewCheckedEvent(r, p.now()))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{Subject: p.subject, Data: data, Header: nats.Header{}}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		msg.Header.Set(RequestIDHeader, id)
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish checked event: %w", err)
	}

	p.logger.Debug(ctx, "published checked event", zap.String("subject", p.subject))
	return nil
}

// Close drains the connection when the Publisher opened it.
func (p *Publisher) Close() error {
	if !p.owned {
		return nil
	}
	return p.nc.Drain()
}
