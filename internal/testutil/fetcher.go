package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/HerbHall/skillpath/pkg/catalog"
)

// Fetcher is a controllable catalog source. It counts calls and, when Gate
// is set, blocks every fetch until Gate is closed or the context ends.
type Fetcher struct {
	Entries []catalog.Entry
	Err     error
	Gate    chan struct{}

	calls   atomic.Int32
	started chan struct{}
	once    sync.Once
}

// NewFetcher returns a Fetcher serving entries.
func NewFetcher(entries []catalog.Entry) *Fetcher {
	return &Fetcher{Entries: entries, started: make(chan struct{})}
}

// NewGatedFetcher returns a Fetcher that blocks until Release is called.
func NewGatedFetcher(entries []catalog.Entry) *Fetcher {
	f := NewFetcher(entries)
	f.Gate = make(chan struct{})
	return f
}

// FetchCatalog implements the catalog fetcher contract.
func (f *Fetcher) FetchCatalog(ctx context.Context) ([]catalog.Entry, error) {
	f.calls.Add(1)
	f.once.Do(func() { close(f.started) })

	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	cp := make([]catalog.Entry, len(f.Entries))
	copy(cp, f.Entries)
	return cp, nil
}

// Calls returns how many fetches have started.
func (f *Fetcher) Calls() int { return int(f.calls.Load()) }

// Started is closed when the first fetch begins.
func (f *Fetcher) Started() <-chan struct{} { return f.started }

// Release unblocks all current and future fetches.
func (f *Fetcher) Release() { close(f.Gate) }
