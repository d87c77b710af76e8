// Package names resolves item ids to display names through a layered cache.
package names

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"wow-terminal/internal/engine"
	"wow-terminal/internal/logger"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned by a Source that has no name for an item.
var ErrNotFound = errors.New("item name not found")

// Store is a persistent L2 cache for item names.
type Store interface {
	GetItemName(itemID int32) (string, bool)
	SetItemName(itemID int32, name string)
}

// Source is the authoritative L3 lookup, e.g. a game-data API client.
type Source interface {
	ItemName(ctx context.Context, itemID int32) (string, error)
}

// StaticSource serves names from a fixed table.
type StaticSource map[int32]string

func (s StaticSource) ItemName(_ context.Context, itemID int32) (string, error) {
	if name, ok := s[itemID]; ok && name != "" {
		return name, nil
	}
	return "", ErrNotFound
}

// Resolver looks names up in memory (L1), then the store (L2), then the
// source (L3). Concurrent misses for the same id share one L3 call.
type Resolver struct {
	cache  sync.Map // int32 -> string
	store  Store
	source Source
	group  singleflight.Group
}

// New creates a resolver. Either layer may be nil.
func New(store Store, source Source) *Resolver {
	return &Resolver{store: store, source: source}
}

// ItemName resolves a name. On failure it returns the placeholder together
// with the error, so callers may use the string either way.
func (r *Resolver) ItemName(ctx context.Context, itemID int32) (string, error) {
	if v, ok := r.cache.Load(itemID); ok {
		return v.(string), nil
	}
	if r.store != nil {
		if name, ok := r.store.GetItemName(itemID); ok {
			r.cache.Store(itemID, name)
			return name, nil
		}
	}
	if r.source == nil {
		return engine.PlaceholderName(itemID), ErrNotFound
	}

	v, err, _ := r.group.Do(strconv.Itoa(int(itemID)), func() (interface{}, error) {
		name, err := r.source.ItemName(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, ErrNotFound
		}
		r.cache.Store(itemID, name)
		if r.store != nil {
			r.store.SetItemName(itemID, name)
		}
		return name, nil
	})
	if err != nil {
		return engine.PlaceholderName(itemID), fmt.Errorf("resolve item %d: %w", itemID, err)
	}
	return v.(string), nil
}

// Prefetch warms the cache for a set of ids with bounded concurrency.
func (r *Resolver) Prefetch(ctx context.Context, itemIDs []int32) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	var misses int
	var mu sync.Mutex
	for _, id := range itemIDs {
		if _, ok := r.cache.Load(id); ok {
			continue
		}
		id := id
		g.Go(func() error {
			if _, err := r.ItemName(ctx, id); err != nil {
				mu.Lock()
				misses++
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	if misses > 0 {
		logger.Warn("NAMES", fmt.Sprintf("%d of %d item names unresolved", misses, len(itemIDs)))
	}
}
