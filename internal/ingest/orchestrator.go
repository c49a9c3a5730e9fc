package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/codebuildervaibhav/video-ingest/internal/cache"
	"github.com/codebuildervaibhav/video-ingest/internal/dedup"
	"github.com/codebuildervaibhav/video-ingest/internal/fingerprint"
	"github.com/codebuildervaibhav/video-ingest/internal/storage"
	"github.com/codebuildervaibhav/video-ingest/internal/transcription"
	"github.com/codebuildervaibhav/video-ingest/internal/types"
)

// DurableStore is the persistence collaborator. Failures here propagate to
// the caller; nothing is cached around them.
type DurableStore interface {
	CreateVideo(ctx context.Context, meta types.VideoMetadata, content []byte) (string, error)
	GetVideo(ctx context.Context, id string) (*types.VideoMetadata, error)
	CreateSubtitle(ctx context.Context, sub types.Subtitle) (string, error)
}

// Transcriber obtains transcript text for a stored asset.
type Transcriber interface {
	Transcribe(ctx context.Context, assetLocator, languageHint string) (*transcription.Result, error)
}

// SubtitleMirror replicates generated subtitles to secondary storage,
// best-effort.
type SubtitleMirror interface {
	UploadSubtitle(videoName string, sub *types.Subtitle) (string, error)
}

// Orchestrator runs the end-to-end "ingest or reuse" workflow: fingerprint,
// dedup lookup, persist on miss, transcribe, attach subtitle.
type Orchestrator struct {
	store       DurableStore
	transcriber Transcriber
	index       *dedup.Index
	entries     *cache.Cache
	mirror      SubtitleMirror // nil disables mirroring
	language    string

	// sleep is swappable so tests don't wait out mirror retry backoff.
	sleep func(time.Duration)
}

// NewOrchestrator wires the upload workflow. mirror may be nil.
func NewOrchestrator(
	store DurableStore,
	transcriber Transcriber,
	index *dedup.Index,
	entries *cache.Cache,
	mirror SubtitleMirror,
	language string,
) *Orchestrator {
	return &Orchestrator{
		store:       store,
		transcriber: transcriber,
		index:       index,
		entries:     entries,
		mirror:      mirror,
		language:    language,
		sleep:       time.Sleep,
	}
}

// HandleUpload ingests one upload. Identical content uploaded before is
// recognized by fingerprint and short-circuits persistence and, when a
// subtitle already exists, transcription as well.
//
// On transcription failure the video record stays valid; the error returned
// is a *TranscriptionFailedError carrying the video identity so callers can
// still report it.
func (o *Orchestrator) HandleUpload(ctx context.Context, content []byte, fileName string, fileSize int64, mimeType string) (*types.UploadResult, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}

	// Step 1: Fingerprint the content
	fp := fingerprint.Compute(content)

	// Step 2: Dedup lookup
	videoID, isDuplicate, blobPath, err := o.resolveVideo(ctx, fp, content, fileName, fileSize, mimeType)
	if err != nil {
		return nil, err
	}

	if isDuplicate {
		if rec, ok := o.index.Lookup(fp); ok && rec.SubtitleID != "" {
			// Dedup fast path: content and subtitle both known.
			log.Printf("Upload dedup fast path: fingerprint %s -> video %s, subtitle %s", fp[:12], videoID, rec.SubtitleID)
			return &types.UploadResult{
				VideoID:     videoID,
				SubtitleID:  rec.SubtitleID,
				IsDuplicate: true,
			}, nil
		}
		log.Printf("Upload dedup hit without subtitle: fingerprint %s -> video %s, retrying transcription", fp[:12], videoID)
	}

	// Step 3: Transcribe
	result, err := o.transcriber.Transcribe(ctx, blobPath, o.language)
	if err != nil {
		return nil, &TranscriptionFailedError{VideoID: videoID, IsDuplicate: isDuplicate, Err: err}
	}

	// Step 4: Persist the subtitle and record the association
	sub := types.Subtitle{
		VideoID:   videoID,
		Language:  result.Language,
		Text:      result.Text,
		Segments:  result.Segments,
		WordCount: len(strings.Fields(result.Text)),
		CreatedAt: time.Now(),
	}
	if sub.Language == "" {
		sub.Language = o.language
	}

	o.mirrorSubtitle(fileName, &sub)

	subtitleID, err := o.store.CreateSubtitle(ctx, sub)
	if err != nil {
		return nil, &TranscriptionFailedError{VideoID: videoID, IsDuplicate: isDuplicate,
			Err: fmt.Errorf("persist subtitle: %w", err)}
	}
	sub.ID = subtitleID

	o.index.AttachSubtitle(fp, subtitleID)
	o.entries.Set(types.KeyPrefixSubtitle+videoID, sub, 0)

	log.Printf("Upload complete: video %s, subtitle %s (duplicate: %t, %d words)",
		videoID, subtitleID, isDuplicate, sub.WordCount)

	return &types.UploadResult{
		VideoID:     videoID,
		SubtitleID:  subtitleID,
		IsDuplicate: isDuplicate,
	}, nil
}

// resolveVideo returns the video identity for the fingerprint, either by
// validating a dedup hit against durable storage or by persisting the new
// content. The returned blobPath is the asset locator for transcription.
func (o *Orchestrator) resolveVideo(ctx context.Context, fp string, content []byte, fileName string, fileSize int64, mimeType string) (videoID string, isDuplicate bool, blobPath string, err error) {
	if rec, ok := o.index.Lookup(fp); ok {
		meta, err := o.store.GetVideo(ctx, rec.VideoID)
		if err == nil {
			return meta.ID, true, meta.BlobPath, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return "", false, "", fmt.Errorf("validate dedup record: %w", err)
		}
		// The cached record outlived the video (manual deletion, restored
		// backup, ...). Drop it and its derived entries, then proceed as a
		// normal upload; the fresh Record call below overwrites the stale one.
		log.Printf("Dedup record for fingerprint %s references missing video %s, discarding", fp[:12], rec.VideoID)
		o.index.Forget(fp)
		o.entries.DeletePattern("*:" + rec.VideoID)
	}

	meta := types.VideoMetadata{
		FileName:    fileName,
		FileSize:    fileSize,
		MimeType:    mimeType,
		Fingerprint: fp,
	}

	videoID, err = o.store.CreateVideo(ctx, meta, content)
	if err != nil {
		// No dedup record is written for a failed persist.
		return "", false, "", fmt.Errorf("persist video: %w", err)
	}

	o.index.Record(fp, videoID)

	stored, err := o.store.GetVideo(ctx, videoID)
	if err != nil {
		return "", false, "", fmt.Errorf("read back video: %w", err)
	}
	o.entries.Set(types.KeyPrefixVideo+videoID, *stored, 0)

	return videoID, false, stored.BlobPath, nil
}

// mirrorSubtitle replicates the subtitle to the mirror with a short retry
// loop. Mirror failures never fail the upload.
func (o *Orchestrator) mirrorSubtitle(fileName string, sub *types.Subtitle) {
	if o.mirror == nil {
		return
	}

	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		var url string
		url, err = o.mirror.UploadSubtitle(fileName, sub)
		if err == nil {
			sub.DriveURL = url
			return
		}
		log.Printf("Subtitle mirror attempt %d/3 failed: %v", attempt, err)
		if attempt < 3 {
			o.sleep(time.Duration(attempt*attempt) * time.Second)
		}
	}
	log.Printf("WARNING: subtitle mirror failed after 3 attempts, continuing with local copy only")
}
