package types

import "time"

// Cache key namespaces. These are a stable contract shared by the cache,
// the dedup index and the route layer; callers must not invent their own.
const (
	KeyPrefixVideo    = "video:"
	KeyPrefixSubtitle = "subtitle:"
	KeyPrefixFilehash = "filehash:"
)

// VideoMetadata describes a stored video asset.
type VideoMetadata struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	MimeType    string    `json:"mime_type"`
	Fingerprint string    `json:"fingerprint"`
	BlobPath    string    `json:"blob_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// Subtitle holds a generated transcript for a video.
type Subtitle struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"video_id"`
	Language  string    `json:"language"`
	Text      string    `json:"text"`
	Segments  []Segment `json:"segments"`
	WordCount int       `json:"word_count"`
	DriveURL  string    `json:"gdrive_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Segment represents a timestamped segment of transcription
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// UploadResult is the outcome of one ingest workflow.
type UploadResult struct {
	VideoID     string `json:"video_id"`
	SubtitleID  string `json:"subtitle_id,omitempty"`
	IsDuplicate bool   `json:"is_duplicate"`
}
