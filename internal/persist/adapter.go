// Package persist bridges the in-memory store and durable key-value
// storage: three collections loaded once at startup, serialized back as
// whole snapshots whenever they change.
package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nextstep/internal/domain"
	"nextstep/internal/store"
)

const (
	KeyInboxItems  = "inboxItems"
	KeyProjects    = "projects"
	KeyNextActions = "nextActions"
)

type Adapter struct {
	KV  KV
	Log *zap.Logger
}

func (a Adapter) log() *zap.Logger {
	if a.Log != nil {
		return a.Log
	}
	return zap.NewNop()
}

// Load reads the three persisted collections concurrently. A missing
// key yields an empty collection; a read or decode failure is logged
// and likewise yields an empty collection for that key, never an error.
// Contexts are not persisted and are re-seeded by the caller.
func (a Adapter) Load(ctx context.Context) store.State {
	var st store.State
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st.InboxItems = loadKey[domain.InboxItem](ctx, a, KeyInboxItems)
		return nil
	})
	g.Go(func() error {
		st.Projects = loadKey[domain.Project](ctx, a, KeyProjects)
		return nil
	})
	g.Go(func() error {
		st.NextActions = loadKey[domain.NextAction](ctx, a, KeyNextActions)
		return nil
	})
	_ = g.Wait()
	return st
}

func loadKey[T any](ctx context.Context, a Adapter, key string) []T {
	value, ok, err := a.KV.Get(ctx, key)
	if err != nil {
		a.log().Warn("load key failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var res []T
	if err := json.Unmarshal([]byte(value), &res); err != nil {
		a.log().Warn("malformed value, falling back to empty", zap.String("key", key), zap.Error(err))
		return nil
	}
	return res
}

// Save serializes the three collections and writes each under its key.
// The writes are independent: a partial failure leaves some keys stale
// until the next successful save.
func (a Adapter) Save(ctx context.Context, st store.State) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return putKey(ctx, a, KeyInboxItems, emptyIfNil(st.InboxItems))
	})
	g.Go(func() error {
		return putKey(ctx, a, KeyProjects, emptyIfNil(st.Projects))
	})
	g.Go(func() error {
		return putKey(ctx, a, KeyNextActions, emptyIfNil(st.NextActions))
	})
	return g.Wait()
}

func putKey[T any](ctx context.Context, a Adapter, key string, v []T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", key, err)
	}
	if err := a.KV.Put(ctx, key, string(b)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
