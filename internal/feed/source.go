package feed

import (
	"context"
)

// Source is a best-effort price feed for one asset class. A Source fetch
// covers a batch of symbols in one call; symbols it cannot serve are simply
// absent from the result. Any error means the whole class falls back to
// simulation until the next refresh.
type Source interface {
	// Name identifies the source in logs
	Name() string

	// Fetch returns the latest price per requested symbol
	Fetch(ctx context.Context, symbols []string) (map[string]float64, error)
}
