package schema

import "context"

// Fetcher retrieves catalog metadata from a backing source: a live
// connection, a fixture file, or a static definition.
type Fetcher interface {
	Fetch(ctx context.Context) (*Snapshot, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) (*Snapshot, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context) (*Snapshot, error) {
	return f(ctx)
}

// StaticFetcher serves a fixed set of tables and routines. Used for tests
// and for catalogs declared in configuration.
type StaticFetcher struct {
	Tables   []*Table
	Routines []*Routine
}

// Fetch implements Fetcher.
func (s *StaticFetcher) Fetch(_ context.Context) (*Snapshot, error) {
	return NewSnapshot(s.Tables, s.Routines), nil
}
