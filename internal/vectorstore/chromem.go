package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
	"github.com/fyrsmithlabs/ticketdup/internal/logging"
	"github.com/fyrsmithlabs/ticketdup/internal/vector"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const chromemBackend = "chromem"

// Every collection holds one marker document recording the index dimension
// next to its tickets. Ticket documents are keyed by IndexDescriptor.Key,
// which always contains a colon, so the marker ID cannot collide.
const (
	chromemMarkerID = "index"
	chromemKindKey  = "kind"
	chromemKindIdx  = "index"
	chromemKindTkt  = "ticket"
)

// errPrecomputedOnly is returned if chromem ever asks us to embed text.
var errPrecomputedOnly = errors.New("chromem: embeddings must be precomputed")

// ChromemConfig holds configuration for the embedded chromem-go database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty keeps the database
	// in memory only.
	Path     string
	Compress bool
}

// ChromemStore implements Store using chromem-go.
//
// Each index is a chromem collection named after the index with characters
// outside [a-z0-9_] replaced ("idx:tickets" becomes "idx_tickets").
// chromem scores by cosine similarity; KNN reports 1 - similarity.
//
// chromem loads the database into memory when it is opened, so a persistent
// path must be owned by a single process.
type ChromemStore struct {
	db     *chromem.DB
	logger *logging.Logger

	// mu serialises index creation and removal within this process so that
	// exactly one of several concurrent CreateIndex calls succeeds.
	mu sync.Mutex
}

// NewChromemStore opens (or creates) the database at cfg.Path.
func NewChromemStore(cfg ChromemConfig, logger *logging.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
		cfg.Path = path
	}

	s := &ChromemStore{
		db:     db,
		logger: logger.Named("vectorstore.chromem"),
	}
	s.logger.Debug(context.Background(), "chromem store opened",
		zap.String("path", cfg.Path),
		zap.Bool("compress", cfg.Compress),
	)
	return s, nil
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func precomputedOnly(ctx context.Context, text string) ([]float32, error) {
	return nil, errPrecomputedOnly
}

// collection returns the collection backing index, or IndexNotFound.
func (s *ChromemStore) collection(op, index string) (*chromem.Collection, error) {
	name, err := collectionName(index)
	if err != nil {
		return nil, err
	}
	c := s.db.GetCollection(name, precomputedOnly)
	if c == nil {
		return nil, errkind.New(errkind.KindStore, errkind.CodeIndexNotFound, op, nil).WithIndex(index)
	}
	return c, nil
}

// storedDim returns the dimension recorded in the index marker. ok is false
// for collections without a marker.
func storedDim(ctx context.Context, c *chromem.Collection) (dim int, ok bool) {
	doc, err := c.GetByID(ctx, chromemMarkerID)
	if err != nil {
		return 0, false
	}
	return len(doc.Embedding), true
}

// checkStoredDim compares got with the dimension the index was created with.
func checkStoredDim(ctx context.Context, c *chromem.Collection, op, index string, got int) (hasMarker bool, _ *errkind.Error) {
	stored, ok := storedDim(ctx, c)
	if !ok {
		return false, nil
	}
	if stored != got {
		return true, errkind.Dimension(op, stored, got).WithIndex(index)
	}
	return true, nil
}

// CreateIndex creates the collection for d.
func (s *ChromemStore) CreateIndex(ctx context.Context, d IndexDescriptor) (err error) {
	ctx, span := startOp(ctx, chromemBackend, "create_index", d.Name)
	defer finishOp(span, chromemBackend, "create_index", time.Now(), &err)

	if err := d.Validate(); err != nil {
		return err
	}
	name, err := collectionName(d.Name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db.GetCollection(name, precomputedOnly) != nil {
		return errkind.New(errkind.KindStore, errkind.CodeIndexExists, "create_index", nil).WithIndex(d.Name)
	}

	metadata := map[string]string{
		"index":        d.Name,
		"key_prefix":   d.KeyPrefix,
		"text_field":   d.TextField,
		"vector_field": d.VectorField,
		"metric":       d.Metric,
		"dim":          fmt.Sprint(d.Dim),
	}
	c, err := s.db.CreateCollection(name, metadata, precomputedOnly)
	if err != nil {
		return errkind.New(errkind.KindStore, errkind.CodeConnectionFailure, "create_index", err).WithIndex(d.Name)
	}

	marker := make([]float32, d.Dim)
	marker[0] = 1
	err = c.AddDocument(ctx, chromem.Document{
		ID:        chromemMarkerID,
		Metadata:  map[string]string{chromemKindKey: chromemKindIdx},
		Embedding: marker,
	})
	if err != nil {
		_ = s.db.DeleteCollection(name)
		return chromemError(ctx, "create_index", d.Name, err)
	}

	s.logger.Info(ctx, "created index",
		zap.String("index", d.Name),
		zap.String("collection", name),
		zap.Int("dim", d.Dim),
	)
	return nil
}

// DropIndex deletes the collection and its documents.
func (s *ChromemStore) DropIndex(ctx context.Context, index string) (err error) {
	ctx, span := startOp(ctx, chromemBackend, "drop_index", index)
	defer finishOp(span, chromemBackend, "drop_index", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection("drop_index", index)
	if err != nil {
		return err
	}
	if err := s.db.DeleteCollection(c.Name); err != nil {
		return errkind.New(errkind.KindStore, errkind.CodeConnectionFailure, "drop_index", err).WithIndex(index)
	}

	s.logger.Info(ctx, "dropped index", zap.String("index", index))
	return nil
}

// Insert upserts p. chromem replaces a document with the same ID.
func (s *ChromemStore) Insert(ctx context.Context, d IndexDescriptor, p Point) (err error) {
	ctx, span := startOp(ctx, chromemBackend, "insert", d.Name)
	defer finishOp(span, chromemBackend, "insert", time.Now(), &err)
	span.SetAttributes(attribute.String("ticket.id", p.ID))

	if err := checkPoint(d, p); err != nil {
		return err
	}
	c, err := s.collection("insert", d.Name)
	if err != nil {
		return err
	}
	if _, derr := checkStoredDim(ctx, c, "insert", d.Name, len(p.Vector)); derr != nil {
		return derr.WithID(p.ID)
	}

	// chromem may normalise the stored vector; keep the caller's copy intact.
	emb := make([]float32, len(p.Vector))
	copy(emb, p.Vector)

	doc := chromem.Document{
		ID:        d.Key(p.ID),
		Metadata:  map[string]string{chromemKindKey: chromemKindTkt},
		Content:   p.Text,
		Embedding: emb,
	}
	if err := c.AddDocument(ctx, doc); err != nil {
		return chromemError(ctx, "insert", d.Name, err).WithID(p.ID)
	}

	s.logger.Debug(ctx, "stored point", zap.String("key", d.Key(p.ID)))
	return nil
}

// KNN queries the collection by embedding.
func (s *ChromemStore) KNN(ctx context.Context, d IndexDescriptor, query vector.Embedding, k int) (results []SearchResult, err error) {
	ctx, span := startOp(ctx, chromemBackend, "knn", d.Name)
	defer finishOp(span, chromemBackend, "knn", time.Now(), &err)
	span.SetAttributes(attribute.Int("k", k))

	if err := checkQuery(d, query, k); err != nil {
		return nil, err
	}
	c, err := s.collection("knn", d.Name)
	if err != nil {
		return nil, err
	}
	hasMarker, derr := checkStoredDim(ctx, c, "knn", d.Name, len(query))
	if derr != nil {
		return nil, derr
	}

	// chromem requires nResults <= document count.
	n := c.Count()
	var where map[string]string
	if hasMarker {
		n--
		where = map[string]string{chromemKindKey: chromemKindTkt}
	}
	if n <= 0 {
		return []SearchResult{}, nil
	}
	if k > n {
		k = n
	}

	q := make([]float32, len(query))
	copy(q, query)

	res, err := c.QueryEmbedding(ctx, q, k, where, nil)
	if err != nil {
		return nil, chromemError(ctx, "knn", d.Name, err)
	}

	results = make([]SearchResult, len(res))
	for i, r := range res {
		dist := 1 - float64(r.Similarity)
		// A zero vector stored before inputs were validated scores NaN;
		// treat it as orthogonal.
		if math.IsNaN(dist) || math.IsInf(dist, 0) {
			dist = 1
		}
		id := strings.TrimPrefix(r.ID, d.KeyPrefix+":")
		results[i] = SearchResult{ID: id, Text: r.Content, Distance: dist}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })

	span.SetAttributes(attribute.Int("results_count", len(results)))
	return results, nil
}

// Close is a no-op; chromem persists every write immediately.
func (s *ChromemStore) Close() error {
	return nil
}

func chromemError(ctx context.Context, op, index string, err error) *errkind.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errkind.New(errkind.KindStore, errkind.CodeTimeoutExceeded, op, err).WithIndex(index)
	}
	return errkind.New(errkind.KindStore, errkind.CodeConnectionFailure, op, err).WithIndex(index)
}
