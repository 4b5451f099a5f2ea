package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
	"github.com/fyrsmithlabs/ticketdup/internal/vector"
	"github.com/redis/go-redis/v9"
)

// distanceField is the alias the KNN clause assigns to the score.
const distanceField = "distance"

// createIndexArgs builds:
//
//	FT.CREATE <name> ON HASH PREFIX 1 <prefix>: SCHEMA <text> TEXT SORTABLE
//	  <vector> VECTOR FLAT 6 TYPE FLOAT32 DIM <dim> DISTANCE_METRIC COSINE
func createIndexArgs(d IndexDescriptor) []any {
	return []any{
		"FT.CREATE", d.Name,
		"ON", "HASH",
		"PREFIX", 1, d.KeyPrefix + ":",
		"SCHEMA",
		d.TextField, "TEXT", "SORTABLE",
		d.VectorField, "VECTOR", d.Algorithm, 6,
		"TYPE", d.DataType,
		"DIM", d.Dim,
		"DISTANCE_METRIC", d.Metric,
	}
}

// searchArgs builds:
//
//	FT.SEARCH <name> "(*)=>[KNN <k> @<vector> $vec AS distance]" PARAMS 2 vec <blob>
//	  RETURN 2 <text> distance SORTBY distance ASC LIMIT 0 <k> DIALECT 2
func searchArgs(d IndexDescriptor, query vector.Embedding, k int) []any {
	return []any{
		"FT.SEARCH", d.Name,
		fmt.Sprintf("(*)=>[KNN %d @%s $vec AS %s]", k, d.VectorField, distanceField),
		"PARAMS", 2, "vec", query.Bytes(),
		"RETURN", 2, d.TextField, distanceField,
		"SORTBY", distanceField, "ASC",
		"LIMIT", 0, k,
		"DIALECT", 2,
	}
}

// insertArgs builds HSET <prefix>:<id> <text> <text-value> <vector> <blob>.
func insertArgs(d IndexDescriptor, p Point) []any {
	return []any{
		"HSET", d.Key(p.ID),
		d.TextField, p.Text,
		d.VectorField, p.Vector.Bytes(),
	}
}

// dropIndexArgs builds FT.DROPINDEX <name> DD. DD deletes the indexed hashes.
func dropIndexArgs(name string) []any {
	return []any{"FT.DROPINDEX", name, "DD"}
}

// decodeSearchReply decodes the RESP2 FT.SEARCH reply
//
//	[total, key1, [field, value, ...], key2, [field, value, ...], ...]
//
// into results sorted by ascending distance. IDs are the keys with the
// "<prefix>:" part removed.
func decodeSearchReply(reply any, d IndexDescriptor) ([]SearchResult, error) {
	items, ok := reply.([]any)
	if !ok {
		return nil, fmt.Errorf("search reply: expected array, got %T", reply)
	}
	if len(items) == 0 {
		return nil, errors.New("search reply: empty array")
	}
	if _, ok := items[0].(int64); !ok {
		return nil, fmt.Errorf("search reply: expected integer total, got %T", items[0])
	}

	rest := items[1:]
	if len(rest)%2 != 0 {
		return nil, fmt.Errorf("search reply: %d trailing elements do not form key/fields pairs", len(rest))
	}

	prefix := d.KeyPrefix + ":"
	results := make([]SearchResult, 0, len(rest)/2)
	for i := 0; i < len(rest); i += 2 {
		key, err := replyString(rest[i])
		if err != nil {
			return nil, fmt.Errorf("search reply: key %d: %w", i/2, err)
		}
		fields, ok := rest[i+1].([]any)
		if !ok {
			return nil, fmt.Errorf("search reply: fields for %q: expected array, got %T", key, rest[i+1])
		}
		if len(fields)%2 != 0 {
			return nil, fmt.Errorf("search reply: fields for %q: odd length %d", key, len(fields))
		}

		r := SearchResult{ID: strings.TrimPrefix(key, prefix)}
		haveDistance := false
		for j := 0; j < len(fields); j += 2 {
			name, err := replyString(fields[j])
			if err != nil {
				return nil, fmt.Errorf("search reply: field name for %q: %w", key, err)
			}
			value, err := replyString(fields[j+1])
			if err != nil {
				return nil, fmt.Errorf("search reply: field %q for %q: %w", name, key, err)
			}
			switch name {
			case d.TextField:
				r.Text = value
			case distanceField:
				dist, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return nil, fmt.Errorf("search reply: distance for %q: %w", key, err)
				}
				if math.IsNaN(dist) || math.IsInf(dist, 0) {
					return nil, fmt.Errorf("search reply: distance for %q is %v", key, dist)
				}
				r.Distance = dist
				haveDistance = true
			}
		}
		if !haveDistance {
			return nil, fmt.Errorf("search reply: no distance for %q", key)
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Distance < results[b].Distance
	})
	return results, nil
}

// indexDimFromInfo reads the DIM of the vector attribute named field from a
// RESP2 FT.INFO reply:
//
//	[..., "attributes", [[identifier, <f>, attribute, <f>, type, VECTOR, ..., dim, <n>, ...], ...], ...]
//
// Older RediSearch versions nest the vector options one level deeper; both
// layouts are searched. ok is false when the reply has no such attribute.
func indexDimFromInfo(reply any, field string) (dim int, ok bool) {
	attrs, ok := infoValue(reply, "attributes")
	if !ok {
		return 0, false
	}
	list, ok := attrs.([]any)
	if !ok {
		return 0, false
	}
	for _, a := range list {
		props, ok := a.([]any)
		if !ok || !attributeNamed(props, field) {
			continue
		}
		return findDim(props)
	}
	return 0, false
}

// infoValue returns the value following key in a flat key/value reply.
func infoValue(reply any, key string) (any, bool) {
	items, ok := reply.([]any)
	if !ok {
		return nil, false
	}
	for i := 0; i+1 < len(items); i += 2 {
		if name, err := replyString(items[i]); err == nil && strings.EqualFold(name, key) {
			return items[i+1], true
		}
	}
	return nil, false
}

func attributeNamed(props []any, field string) bool {
	for _, key := range []string{"attribute", "identifier"} {
		v, ok := infoValue(props, key)
		if !ok {
			continue
		}
		if name, err := replyString(v); err == nil && name == field {
			return true
		}
	}
	return false
}

func findDim(props []any) (int, bool) {
	if v, ok := infoValue(props, "dim"); ok {
		return replyInt(v)
	}
	for _, p := range props {
		if nested, ok := p.([]any); ok {
			if dim, ok := findDim(nested); ok {
				return dim, true
			}
		}
	}
	return 0, false
}

func replyInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case string, []byte:
		s, _ := replyString(n)
		i, err := strconv.Atoi(s)
		return i, err == nil
	default:
		return 0, false
	}
}

func replyString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

// mapRedisError converts a non-nil go-redis error into an *errkind.Error.
//
// RediSearch reports a missing index as "Unknown index name", "Unknown Index
// name" or "<name>: no such index" depending on the module version.
func mapRedisError(ctx context.Context, op, index string, err error) *errkind.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errkind.New(errkind.KindStore, errkind.CodeTimeoutExceeded, op, err).WithIndex(index)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errkind.New(errkind.KindStore, errkind.CodeTimeoutExceeded, op, err).WithIndex(index)
		}
		return errkind.New(errkind.KindStore, errkind.CodeConnectionFailure, op, err).WithIndex(index)
	}

	var rerr redis.Error
	if errors.As(err, &rerr) {
		msg := strings.ToLower(rerr.Error())
		switch {
		case strings.Contains(msg, "unknown index name"), strings.Contains(msg, "no such index"):
			return errkind.New(errkind.KindStore, errkind.CodeIndexNotFound, op, err).WithIndex(index)
		case strings.Contains(msg, "index already exists"):
			return errkind.New(errkind.KindStore, errkind.CodeIndexExists, op, err).WithIndex(index)
		case strings.Contains(msg, "blob size"), strings.Contains(msg, "vector") && strings.Contains(msg, "dim"):
			return errkind.New(errkind.KindStore, errkind.CodeMalformedVector, op, err).WithIndex(index)
		}
	}

	return errkind.New(errkind.KindStore, errkind.CodeConnectionFailure, op, err).WithIndex(index)
}
