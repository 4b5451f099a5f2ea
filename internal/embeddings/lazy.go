package embeddings

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/ticketdup/internal/vector"
)

// LazyClient defers building the provider client until the first Generate,
// so commands that never embed do not need provider credentials.
type LazyClient struct {
	build func() (Client, error)

	once   sync.Once
	client Client
	err    error
}

var _ Client = (*LazyClient)(nil)

// NewLazyClient returns a client that calls build once, on first use. A
// build error is returned by every Generate call.
func NewLazyClient(build func() (Client, error)) *LazyClient {
	return &LazyClient{build: build}
}

// Generate builds the client if needed and embeds text.
func (l *LazyClient) Generate(ctx context.Context, text string) (vector.Embedding, error) {
	l.once.Do(func() {
		l.client, l.err = l.build()
	})
	if l.err != nil {
		return nil, l.err
	}
	return l.client.Generate(ctx, text)
}
