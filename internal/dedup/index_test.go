package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/video-ingest/internal/cache"
)

const testFP = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func newTestIndex(t *testing.T) (*Index, *cache.Cache) {
	t.Helper()
	store := cache.New(time.Hour)
	return NewIndex(store, 24*time.Hour), store
}

func TestIndex_LookupMiss(t *testing.T) {
	idx, _ := newTestIndex(t)

	_, ok := idx.Lookup(testFP)
	assert.False(t, ok)
}

func TestIndex_RecordAndLookup(t *testing.T) {
	idx, _ := newTestIndex(t)

	idx.Record(testFP, "video-1")

	rec, ok := idx.Lookup(testFP)
	require.True(t, ok)
	assert.Equal(t, "video-1", rec.VideoID)
	assert.Empty(t, rec.SubtitleID)
}

func TestIndex_RecordLastWriteWins(t *testing.T) {
	idx, _ := newTestIndex(t)

	idx.Record(testFP, "video-1")
	idx.Record(testFP, "video-2")

	rec, ok := idx.Lookup(testFP)
	require.True(t, ok)
	assert.Equal(t, "video-2", rec.VideoID)
}

func TestIndex_AttachSubtitle(t *testing.T) {
	idx, _ := newTestIndex(t)

	idx.Record(testFP, "video-1")
	idx.AttachSubtitle(testFP, "sub-1")

	rec, ok := idx.Lookup(testFP)
	require.True(t, ok)
	assert.Equal(t, "video-1", rec.VideoID)
	assert.Equal(t, "sub-1", rec.SubtitleID)
}

func TestIndex_AttachSubtitleWithoutRecordIsNoop(t *testing.T) {
	idx, _ := newTestIndex(t)

	idx.AttachSubtitle(testFP, "sub-1")

	_, ok := idx.Lookup(testFP)
	assert.False(t, ok)
}

func TestIndex_Forget(t *testing.T) {
	idx, _ := newTestIndex(t)

	idx.Record(testFP, "video-1")
	idx.Forget(testFP)

	_, ok := idx.Lookup(testFP)
	assert.False(t, ok)
}

func TestIndex_ForeignValueUnderNamespaceIsDiscarded(t *testing.T) {
	idx, store := newTestIndex(t)

	store.Set("filehash:"+testFP, "not a record", time.Minute)

	_, ok := idx.Lookup(testFP)
	assert.False(t, ok)

	// The bad entry was dropped, not left to trip the next lookup.
	_, ok = store.Get("filehash:" + testFP)
	assert.False(t, ok)
}

func TestIndex_UsesFilehashNamespace(t *testing.T) {
	idx, store := newTestIndex(t)

	idx.Record(testFP, "video-1")

	_, ok := store.Get("filehash:" + testFP)
	assert.True(t, ok)
}
