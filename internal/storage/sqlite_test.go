package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/video-ingest/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "test.db"), filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testVideoMeta() types.VideoMetadata {
	return types.VideoMetadata{
		FileName:    "holiday.mp4",
		FileSize:    4,
		MimeType:    "video/mp4",
		Fingerprint: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	}
}

func TestStore_CreateAndGetVideo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateVideo(ctx, testVideoMeta(), []byte("mp4!"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "holiday.mp4", got.FileName)
	assert.Equal(t, int64(4), got.FileSize)
	assert.Equal(t, "video/mp4", got.MimeType)

	content, err := os.ReadFile(got.BlobPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4!"), content)
}

func TestStore_GetVideoNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetVideo(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteVideo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateVideo(ctx, testVideoMeta(), []byte("mp4!"))
	require.NoError(t, err)

	meta, err := store.GetVideo(ctx, id)
	require.NoError(t, err)

	require.NoError(t, store.DeleteVideo(ctx, id))

	_, err = store.GetVideo(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = os.Stat(meta.BlobPath)
	assert.True(t, os.IsNotExist(err), "blob file should be removed")
}

func TestStore_CreateAndGetSubtitle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	videoID, err := store.CreateVideo(ctx, testVideoMeta(), []byte("mp4!"))
	require.NoError(t, err)

	sub := types.Subtitle{
		VideoID:   videoID,
		Language:  "en",
		Text:      "hello there",
		WordCount: 2,
		Segments: []types.Segment{
			{Start: 0, End: 1.2, Text: "hello"},
			{Start: 1.2, End: 2.4, Text: "there"},
		},
	}

	subID, err := store.CreateSubtitle(ctx, sub)
	require.NoError(t, err)

	got, err := store.GetSubtitle(ctx, subID)
	require.NoError(t, err)
	assert.Equal(t, videoID, got.VideoID)
	assert.Equal(t, "hello there", got.Text)
	assert.Equal(t, 2, got.WordCount)
	require.Len(t, got.Segments, 2)
	assert.Equal(t, "there", got.Segments[1].Text)

	byVideo, err := store.GetSubtitleByVideo(ctx, videoID)
	require.NoError(t, err)
	assert.Equal(t, subID, byVideo.ID)
}

func TestStore_GetSubtitleByVideoNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSubtitleByVideo(context.Background(), "no-such-video")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListVideos(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		meta := testVideoMeta()
		_, err := store.CreateVideo(ctx, meta, []byte{byte(i)})
		require.NoError(t, err)
	}

	videos, err := store.ListVideos(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, videos, 2)

	videos, err = store.ListVideos(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, videos, 3)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "clip.mp4", sanitizeFilename("clip.mp4"))
	assert.Equal(t, "clip.mp4", sanitizeFilename("../../etc/clip.mp4"))
	assert.Equal(t, "a_b_.mp4", sanitizeFilename("a:b?.mp4"))
	assert.Equal(t, "unnamed", sanitizeFilename(""))
	assert.Len(t, sanitizeFilename(strings.Repeat("a", 300)), 100)
}
