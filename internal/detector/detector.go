// Package detector decides whether a support ticket is a near-duplicate of
// one already stored.
//
// A check embeds the ticket text, asks the vector store for the nearest
// stored tickets, and marks every neighbour whose cosine distance is at most
// the threshold as a duplicate. In QueryAndStore mode the ticket is then
// upserted so later checks can find it.
package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ticketdup/internal/embeddings"
	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
	"github.com/fyrsmithlabs/ticketdup/internal/logging"
	"github.com/fyrsmithlabs/ticketdup/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("ticketdup.detector")

// Defaults used when neither the request nor an option sets a value.
const (
	DefaultK         = 1
	DefaultThreshold = 0.03

	// MaxThreshold is the largest cosine distance.
	MaxThreshold = 2.0
)

// Publisher receives a report after every successful check.
type Publisher interface {
	Publish(ctx context.Context, r *Report) error
}

// Detector runs duplicate checks against one index.
//
// A Detector is safe for concurrent use when its embedder and store are.
type Detector struct {
	embedder  embeddings.Client
	store     vectorstore.Store
	index     vectorstore.IndexDescriptor
	k         int
	threshold float64
	timeout   time.Duration
	publisher Publisher
	logger    *logging.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithK sets the default neighbour count.
func WithK(k int) Option {
	return func(d *Detector) {
		d.k = k
	}
}

// WithThreshold sets the default duplicate threshold.
func WithThreshold(t float64) Option {
	return func(d *Detector) {
		d.threshold = t
	}
}

// WithTimeout bounds each check. Zero means no extra deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Detector) {
		d.timeout = timeout
	}
}

// WithPublisher sets where reports are published after each check.
func WithPublisher(p Publisher) Option {
	return func(d *Detector) {
		d.publisher = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Detector over the given embedder, store, and index.
func New(embedder embeddings.Client, store vectorstore.Store, index vectorstore.IndexDescriptor, opts ...Option) (*Detector, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if err := index.Validate(); err != nil {
		return nil, fmt.Errorf("validating index: %w", err)
	}

	d := &Detector{
		embedder:  embedder,
		store:     store,
		index:     index,
		k:         DefaultK,
		threshold: DefaultThreshold,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.k < 1 {
		return nil, fmt.Errorf("%w: k must be >= 1, got %d", ErrInvalidRequest, d.k)
	}
	if err := checkThreshold(d.threshold); err != nil {
		return nil, err
	}
	d.logger = d.logger.Named("detector")
	return d, nil
}

// Index returns the descriptor the detector works against.
func (d *Detector) Index() vectorstore.IndexDescriptor {
	return d.index
}

// InitIndex creates the index. With force, an existing index and its points
// are dropped first; a missing index is not an error in that case.
func (d *Detector) InitIndex(ctx context.Context, force bool) error {
	if force {
		err := d.store.DropIndex(ctx, d.index.Name)
		switch {
		case err == nil:
			d.logger.Info(ctx, "dropped existing index", zap.String("index", d.index.Name))
		case errors.Is(err, errkind.ErrIndexNotFound):
		default:
			return fmt.Errorf("dropping index: %w", err)
		}
	}
	if err := d.store.CreateIndex(ctx, d.index); err != nil {
		return fmt.Errorf("creating index: %w", err)
	}
	return nil
}

// Check classifies req.Document against the stored tickets.
//
// Embedding or query failures abort the check and nothing is stored. In
// QueryAndStore mode an insert failure is reported in Report.StoreErr and
// the returned error is nil.
func (d *Detector) Check(ctx context.Context, req Request) (_ *Report, err error) {
	ctx, span := tracer.Start(ctx, "detector.Check")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "success")
		}
		span.End()
	}()

	k, threshold, err := d.resolve(req)
	if err != nil {
		return nil, err
	}
	doc := req.Document
	span.SetAttributes(
		attribute.String("ticket.id", doc.ID),
		attribute.String("detector.mode", req.Mode.String()),
		attribute.Int("detector.k", k),
		attribute.Float64("detector.threshold", threshold),
	)
	ctx = logging.WithTicketID(ctx, doc.ID)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	emb, err := d.embedder.Generate(ctx, doc.Text)
	if err != nil {
		return nil, fmt.Errorf("generating embedding: %w", err)
	}

	// A stored copy of this ticket would be its own nearest neighbour, so
	// ask for one extra result and filter it out.
	want := k
	if doc.ID != "" {
		want++
	}
	results, err := d.store.KNN(ctx, d.index, emb, want)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	report := classify(doc.ID, results, k, threshold)

	if req.Mode == QueryAndStore {
		insertErr := d.store.Insert(ctx, d.index, vectorstore.Point{ID: doc.ID, Text: doc.Text, Vector: emb})
		if insertErr != nil {
			report.StoreErr = insertErr
			d.logger.Warn(ctx, "storing ticket failed", zap.Error(insertErr))
		} else {
			report.Stored = true
		}
	}

	fields := []zap.Field{
		zap.Bool("duplicate", report.Duplicate),
		zap.Int("neighbors", len(report.Neighbors)),
		zap.Bool("stored", report.Stored),
		zap.Float64("threshold", threshold),
	}
	if report.Closest != nil {
		fields = append(fields,
			zap.String("closest_id", report.Closest.ID),
			zap.Float64("closest_distance", report.Closest.Distance),
		)
	}
	d.logger.Info(ctx, "ticket checked", fields...)
	span.SetAttributes(attribute.Bool("detector.duplicate", report.Duplicate))

	if d.publisher != nil {
		if perr := d.publisher.Publish(ctx, report); perr != nil {
			d.logger.Warn(ctx, "publishing check event failed", zap.Error(perr))
		}
	}

	return report, nil
}

// resolve applies defaults and validates the request.
func (d *Detector) resolve(req Request) (int, float64, error) {
	if req.Document.Text == "" {
		return 0, 0, errkind.New(errkind.KindInput, errkind.CodeEmptyInput, "check", errors.New("ticket text is empty")).
			WithID(req.Document.ID)
	}
	if req.Mode == QueryAndStore && req.Document.ID == "" {
		return 0, 0, errkind.New(errkind.KindInput, errkind.CodeEmptyInput, "check", errors.New("ticket id is required to store"))
	}
	if req.Mode != QueryOnly && req.Mode != QueryAndStore {
		return 0, 0, fmt.Errorf("%w: unknown mode %s", ErrInvalidRequest, req.Mode)
	}

	k := d.k
	if req.K != 0 {
		k = req.K
	}
	if k < 1 {
		return 0, 0, fmt.Errorf("%w: k must be >= 1, got %d", ErrInvalidRequest, k)
	}

	threshold := d.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if err := checkThreshold(threshold); err != nil {
		return 0, 0, err
	}
	return k, threshold, nil
}

func checkThreshold(t float64) error {
	if t < 0 || t > MaxThreshold || t != t {
		return fmt.Errorf("%w: threshold must be within [0, %g], got %v", ErrInvalidRequest, MaxThreshold, t)
	}
	return nil
}

// classify drops the document's own id, trims to k, and marks duplicates.
// results must be in ascending distance order.
func classify(id string, results []vectorstore.SearchResult, k int, threshold float64) *Report {
	report := &Report{
		ID:        id,
		Neighbors: make([]Neighbor, 0, k),
		Threshold: threshold,
		K:         k,
	}
	for _, r := range results {
		if id != "" && r.ID == id {
			continue
		}
		if len(report.Neighbors) == k {
			break
		}
		report.Neighbors = append(report.Neighbors, Neighbor{
			ID:          r.ID,
			Text:        r.Text,
			Distance:    r.Distance,
			IsDuplicate: r.Distance <= threshold,
		})
	}
	if len(report.Neighbors) > 0 {
		closest := report.Neighbors[0]
		report.Closest = &closest
		report.Duplicate = closest.IsDuplicate
	}
	return report
}
