package dedup

import (
	"log"
	"time"

	"github.com/codebuildervaibhav/video-ingest/internal/cache"
	"github.com/codebuildervaibhav/video-ingest/internal/types"
)

// DefaultTTL keeps dedup records around much longer than per-entity caches:
// the value of recognizing a re-upload outlives any single session.
const DefaultTTL = 30 * 24 * time.Hour

// Record maps a content fingerprint to the video it was first stored as,
// plus the subtitle generated for it, if any. Records are never mutated in
// place; AttachSubtitle writes a fresh record under the same key.
type Record struct {
	VideoID    string
	SubtitleID string
}

// Index is a best-effort map from content fingerprint to previously stored
// identities. It provides no mutual exclusion: two concurrent uploads of the
// same content may both miss and both persist, and the second Record call
// wins. That race is accepted; the index only avoids redundant work, it does
// not guarantee exact-once persistence.
type Index struct {
	store *cache.Cache
	ttl   time.Duration
}

// NewIndex creates a dedup index backed by the given cache. A non-positive
// ttl uses DefaultTTL.
func NewIndex(store *cache.Cache, ttl time.Duration) *Index {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Index{store: store, ttl: ttl}
}

// Lookup returns the record for fingerprint, if one is cached and live.
// Callers must re-validate the referenced video against durable storage
// before trusting the hit.
func (idx *Index) Lookup(fingerprint string) (Record, bool) {
	v, ok := idx.store.Get(types.KeyPrefixFilehash + fingerprint)
	if !ok {
		return Record{}, false
	}
	rec, ok := v.(Record)
	if !ok {
		// Foreign value under our namespace; drop it and treat as a miss.
		log.Printf("Dedup: unexpected value type under %s%s, discarding", types.KeyPrefixFilehash, fingerprint)
		idx.store.Delete(types.KeyPrefixFilehash + fingerprint)
		return Record{}, false
	}
	return rec, true
}

// Record stores fingerprint -> videoID, overwriting any previous record
// (last-write-wins).
func (idx *Index) Record(fingerprint, videoID string) {
	idx.store.Set(types.KeyPrefixFilehash+fingerprint, Record{VideoID: videoID}, idx.ttl)
}

// AttachSubtitle adds a subtitle identity to an existing record. If the
// record expired in between, nothing is written; the next upload of the same
// content will rebuild it.
func (idx *Index) AttachSubtitle(fingerprint, subtitleID string) {
	rec, ok := idx.Lookup(fingerprint)
	if !ok {
		return
	}
	rec.SubtitleID = subtitleID
	idx.store.Set(types.KeyPrefixFilehash+fingerprint, rec, idx.ttl)
}

// Forget drops the record for fingerprint. Used when a cached hit turns out
// to reference a video no longer present in durable storage.
func (idx *Index) Forget(fingerprint string) {
	idx.store.Delete(types.KeyPrefixFilehash + fingerprint)
}
