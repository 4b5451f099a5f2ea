package vectorstore

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/ticketdup/internal/config"
	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
	"github.com/fyrsmithlabs/ticketdup/internal/vector"
)

// Index parameters. Only this combination is supported.
const (
	AlgorithmFlat   = "FLAT"
	MetricCosine    = "COSINE"
	DataTypeFloat32 = "FLOAT32"
)

var (
	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidDescriptor indicates an index descriptor that cannot be used.
	ErrInvalidDescriptor = errors.New("invalid index descriptor")
)

// IndexDescriptor describes a similarity index. It is fixed at creation.
type IndexDescriptor struct {
	Name        string
	KeyPrefix   string
	TextField   string
	VectorField string
	Algorithm   string
	Metric      string
	DataType    string
	Dim         int
}

// Point is one stored ticket.
type Point struct {
	ID     string
	Text   string
	Vector vector.Embedding
}

// SearchResult is one neighbor returned by KNN.
type SearchResult struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Distance float64 `json:"distance"`
}

// DescriptorFromConfig builds a descriptor from the index section.
func DescriptorFromConfig(c config.IndexConfig) IndexDescriptor {
	return IndexDescriptor{
		Name:        c.Name,
		KeyPrefix:   c.KeyPrefix,
		TextField:   c.TextField,
		VectorField: c.VectorField,
		Algorithm:   AlgorithmFlat,
		Metric:      MetricCosine,
		DataType:    DataTypeFloat32,
		Dim:         c.Dim,
	}
}

// Validate checks that d names every field and uses the supported parameters.
func (d IndexDescriptor) Validate() error {
	if d.Name == "" || d.KeyPrefix == "" || d.TextField == "" || d.VectorField == "" {
		return fmt.Errorf("%w: name, key prefix, text field and vector field are required", ErrInvalidDescriptor)
	}
	if d.TextField == d.VectorField {
		return fmt.Errorf("%w: text and vector fields must differ", ErrInvalidDescriptor)
	}
	if d.Dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidDescriptor, d.Dim)
	}
	if d.Algorithm != AlgorithmFlat || d.Metric != MetricCosine || d.DataType != DataTypeFloat32 {
		return fmt.Errorf("%w: only %s/%s/%s is supported, got %s/%s/%s", ErrInvalidDescriptor,
			AlgorithmFlat, MetricCosine, DataTypeFloat32, d.Algorithm, d.Metric, d.DataType)
	}
	return nil
}

// Key returns the storage key for id, "<prefix>:<id>".
func (d IndexDescriptor) Key(id string) string {
	return d.KeyPrefix + ":" + id
}

// checkPoint validates an insert before any store call.
func checkPoint(d IndexDescriptor, p Point) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		return errkind.New(errkind.KindInput, errkind.CodeEmptyInput, "insert", errors.New("point id is empty")).
			WithIndex(d.Name)
	}
	if len(p.Vector) != d.Dim {
		return errkind.Dimension("insert", d.Dim, len(p.Vector)).WithIndex(d.Name).WithID(p.ID)
	}
	if err := p.Vector.Comparable(); err != nil {
		return errkind.New(errkind.KindStore, errkind.CodeMalformedVector, "insert", err).WithIndex(d.Name).WithID(p.ID)
	}
	return nil
}

// checkQuery validates a KNN request before any store call.
func checkQuery(d IndexDescriptor, q vector.Embedding, k int) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if k < 1 {
		return errkind.New(errkind.KindStore, errkind.CodeMalformedVector, "knn",
			fmt.Errorf("k must be >= 1, got %d", k)).WithIndex(d.Name)
	}
	if len(q) != d.Dim {
		return errkind.Dimension("knn", d.Dim, len(q)).WithIndex(d.Name)
	}
	if err := q.Comparable(); err != nil {
		return errkind.New(errkind.KindStore, errkind.CodeMalformedVector, "knn", err).WithIndex(d.Name)
	}
	return nil
}

var collectionNameInvalid = regexp.MustCompile(`[^a-z0-9_]`)

// collectionName maps an index name onto the ^[a-z0-9_]{1,64}$ alphabet
// accepted by the collection-based backends: "idx:tickets" -> "idx_tickets".
func collectionName(index string) (string, error) {
	name := collectionNameInvalid.ReplaceAllString(strings.ToLower(index), "_")
	if name == "" || len(name) > 64 {
		return "", fmt.Errorf("%w: index name %q cannot be mapped to a collection name", ErrInvalidDescriptor, index)
	}
	return name, nil
}
