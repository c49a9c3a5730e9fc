package ingest

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks uploads rejected before any hashing or storage work.
var ErrInvalidInput = errors.New("invalid upload input")

// TranscriptionFailedError reports that the video was persisted (or found
// via dedup) but no transcript could be obtained. The video stays usable;
// re-uploading the same content hits the dedup fast path and retries
// transcription.
type TranscriptionFailedError struct {
	VideoID     string
	IsDuplicate bool
	Err         error
}

func (e *TranscriptionFailedError) Error() string {
	return fmt.Sprintf("video %s stored without subtitle: %v", e.VideoID, e.Err)
}

func (e *TranscriptionFailedError) Unwrap() error {
	return e.Err
}
