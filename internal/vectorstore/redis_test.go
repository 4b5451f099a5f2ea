package vectorstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
	"github.com/fyrsmithlabs/ticketdup/internal/logging"
	"github.com/fyrsmithlabs/ticketdup/internal/vector"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisConfig_Validate(t *testing.T) {
	assert.NoError(t, RedisConfig{Addr: "localhost:6379"}.Validate())
	assert.ErrorIs(t, RedisConfig{}.Validate(), ErrInvalidConfig)

	_, err := NewRedisStore(RedisConfig{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRedisStore_ValidatesBeforeNetwork(t *testing.T) {
	// Nothing listens here; validation must fail first.
	store, err := NewRedisStore(RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond}, logging.NewNop())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	d := protoDescriptor()

	_, err = store.KNN(ctx, d, vector.Embedding{1, 2}, 1)
	assert.True(t, errors.Is(err, errkind.ErrMalformedVector), "got %v", err)

	_, err = store.KNN(ctx, d, make(vector.Embedding, d.Dim), 0)
	assert.True(t, errors.Is(err, errkind.ErrMalformedVector), "got %v", err)

	err = store.Insert(ctx, d, Point{ID: "a", Vector: vector.Embedding{1}})
	assert.True(t, errors.Is(err, errkind.ErrMalformedVector), "got %v", err)
}

func TestRedisStore_Unreachable(t *testing.T) {
	store, err := NewRedisStore(RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond}, logging.NewNop())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	d := protoDescriptor()

	err = store.CreateIndex(ctx, d)
	require.Error(t, err)
	assert.Equal(t, errkind.KindStore, errkind.KindOf(err))
	assert.Equal(t, errkind.CodeConnectionFailure, errkind.CodeOf(err))

	err = store.Ping(ctx)
	assert.Equal(t, errkind.CodeConnectionFailure, errkind.CodeOf(err))
}

// TestRedisStore_Integration runs against Redis Stack when
// TICKETDUP_REDIS_ADDR is set.
// fakeRediSearch speaks enough RESP2 to answer FT.INFO for one index with a
// fixed vector dimension. It records the name of every command it receives.
type fakeRediSearch struct {
	ln  net.Listener
	dim int

	mu       sync.Mutex
	commands []string
}

func newFakeRediSearch(t *testing.T, dim int) *fakeRediSearch {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeRediSearch{ln: ln, dim: dim}
	t.Cleanup(func() { _ = ln.Close() })
	go f.serve()
	return f
}

func (f *fakeRediSearch) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeRediSearch) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		name := strings.ToUpper(args[0])
		f.mu.Lock()
		f.commands = append(f.commands, name)
		f.mu.Unlock()

		var reply string
		switch name {
		case "FT.INFO":
			reply = "*4\r\n$10\r\nindex_name\r\n$" + strconv.Itoa(len(args[1])) + "\r\n" + args[1] + "\r\n" +
				"$10\r\nattributes\r\n*1\r\n*8\r\n" +
				"$10\r\nidentifier\r\n$9\r\nembedding\r\n" +
				"$9\r\nattribute\r\n$9\r\nembedding\r\n" +
				"$4\r\ntype\r\n$6\r\nVECTOR\r\n" +
				"$3\r\ndim\r\n:" + strconv.Itoa(f.dim) + "\r\n"
		case "HSET":
			reply = ":2\r\n"
		case "FT.SEARCH":
			reply = "*1\r\n:0\r\n"
		default:
			reply = "-ERR unknown command '" + args[0] + "'\r\n"
		}
		if _, err := io.WriteString(conn, reply); err != nil {
			return
		}
	}
}

func (f *fakeRediSearch) received(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.commands {
		if c == name {
			return true
		}
	}
	return false
}

// readCommand reads one RESP array of bulk strings.
func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, "*") {
		return nil, fmt.Errorf("expected array, got %q", line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, err
	}
	args := make([]string, n)
	for i := range args {
		header, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, "$")))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args[i] = string(buf[:size])
	}
	if n == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}

func TestRedisStore_StoredDimension(t *testing.T) {
	fake := newFakeRediSearch(t, 4)
	store, err := NewRedisStore(RedisConfig{Addr: fake.ln.Addr().String(), DialTimeout: time.Second}, logging.NewNop())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	d := protoDescriptor()
	d.Dim = 3

	err = store.Insert(ctx, d, Point{ID: "a", Text: "x", Vector: vector.Embedding{1, 0, 0}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrMalformedVector), "got %v", err)
	assert.Contains(t, err.Error(), "expected_dim=4 actual_dim=3")
	assert.False(t, fake.received("HSET"), "mismatched vector must not be written")

	_, err = store.KNN(ctx, d, vector.Embedding{1, 0, 0}, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrMalformedVector), "got %v", err)
	assert.False(t, fake.received("FT.SEARCH"))

	d.Dim = 4
	require.NoError(t, store.Insert(ctx, d, Point{ID: "a", Text: "x", Vector: vector.Embedding{1, 0, 0, 0}}))
	assert.True(t, fake.received("HSET"))

	results, err := store.KNN(ctx, d, vector.Embedding{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRedisStore_Integration(t *testing.T) {
	addr := os.Getenv("TICKETDUP_REDIS_ADDR")
	if addr == "" {
		t.Skip("TICKETDUP_REDIS_ADDR not set")
	}

	store, err := NewRedisStore(RedisConfig{Addr: addr}, logging.NewNop())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	suffix := uuid.NewString()[:8]
	d := protoDescriptor()
	d.Name = "idx:test_" + suffix
	d.KeyPrefix = "test_" + suffix
	d.Dim = 3

	err = store.Insert(ctx, d, Point{ID: "a", Text: "x", Vector: vector.Embedding{1, 0, 0}})
	assert.True(t, errors.Is(err, errkind.ErrIndexNotFound), "insert before create: %v", err)

	require.NoError(t, store.CreateIndex(ctx, d))
	defer func() { _ = store.DropIndex(ctx, d.Name) }()

	err = store.CreateIndex(ctx, d)
	assert.True(t, errors.Is(err, errkind.ErrIndexExists), "got %v", err)

	results, err := store.KNN(ctx, d, vector.Embedding{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, store.Insert(ctx, d, Point{ID: "a", Text: "printer jam", Vector: vector.Embedding{1, 0, 0}}))
	require.NoError(t, store.Insert(ctx, d, Point{ID: "b", Text: "vpn down", Vector: vector.Embedding{0, 1, 0}}))
	require.NoError(t, store.Insert(ctx, d, Point{ID: "a", Text: "printer jammed", Vector: vector.Embedding{1, 0, 0}}))

	results, err = store.KNN(ctx, d, vector.Embedding{1, 0.05, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "printer jammed", results[0].Text)
	assert.Less(t, results[0].Distance, results[1].Distance)

	require.NoError(t, store.DropIndex(ctx, d.Name))
	err = store.DropIndex(ctx, d.Name)
	assert.True(t, errors.Is(err, errkind.ErrIndexNotFound), "got %v", err)
}
