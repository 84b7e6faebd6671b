// Package dedup provides cross-backend helpers for the dedup store
// providers in its subpackages.
package dedup

import "github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"

// Scoped returns a view of store whose keys are namespaced under the
// given prefix. Stages share one backing store, but their keyspaces
// must not collide: a URL recorded by discovery is still new to
// enrichment. Close on the view is a no-op; the backing store's owner
// closes it.
func Scoped(store pipeline.DedupStore, prefix string) pipeline.DedupStore {
	return scopedStore{store: store, prefix: prefix + "|"}
}

type scopedStore struct {
	store  pipeline.DedupStore
	prefix string
}

func (s scopedStore) Seen(key string) bool { return s.store.Seen(s.prefix + key) }

func (s scopedStore) AddIfNew(key string) bool { return s.store.AddIfNew(s.prefix + key) }

// Count reports the backing store's cardinality across all scopes; the
// store interface has no per-prefix enumeration.
func (s scopedStore) Count() int { return s.store.Count() }

func (s scopedStore) Close() error { return nil }
