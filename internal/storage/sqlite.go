package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/video-ingest/internal/types"
)

// ErrNotFound is returned when the requested asset does not exist.
var ErrNotFound = errors.New("asset not found")

// Store is the durable side of the system: video and subtitle metadata in
// SQLite, raw content as blob files on disk. The cache and dedup index are
// disposable stand-ins for this store, never the other way around.
type Store struct {
	db    *sql.DB
	blobs *BlobStore
}

// NewStore opens (or creates) the database at dbPath and roots blob files
// under blobDir.
func NewStore(dbPath, blobDir string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		mime_type TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		blob_path TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subtitles (
		id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL,
		language TEXT,
		text_path TEXT NOT NULL,
		segments TEXT,
		word_count INTEGER,
		gdrive_url TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_videos_fingerprint ON videos(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos(created_at);
	CREATE INDEX IF NOT EXISTS idx_subtitles_video_id ON subtitles(video_id);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &Store{db: db, blobs: NewBlobStore(blobDir)}, nil
}

// CreateVideo persists the video bytes and metadata, returning the new
// video ID.
func (s *Store) CreateVideo(ctx context.Context, meta types.VideoMetadata, content []byte) (string, error) {
	id := uuid.New().String()

	blobPath, err := s.blobs.SaveVideo(id, meta.FileName, content)
	if err != nil {
		return "", fmt.Errorf("failed to save video blob: %w", err)
	}

	query := `
	INSERT INTO videos (id, file_name, file_size, mime_type, fingerprint, blob_path, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, meta.FileName, meta.FileSize,
		meta.MimeType, meta.Fingerprint, blobPath, time.Now()); err != nil {
		// Don't leave an orphaned blob behind a failed insert.
		os.Remove(blobPath)
		return "", fmt.Errorf("failed to save video metadata: %w", err)
	}

	return id, nil
}

// GetVideo retrieves video metadata by ID. Returns ErrNotFound if no such
// video exists.
func (s *Store) GetVideo(ctx context.Context, id string) (*types.VideoMetadata, error) {
	query := `
	SELECT id, file_name, file_size, mime_type, fingerprint, blob_path, created_at
	FROM videos WHERE id = ?
	`

	var meta types.VideoMetadata
	err := s.db.QueryRowContext(ctx, query, id).Scan(&meta.ID, &meta.FileName,
		&meta.FileSize, &meta.MimeType, &meta.Fingerprint, &meta.BlobPath, &meta.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return &meta, nil
}

// DeleteVideo removes a video's metadata row and its blob file.
func (s *Store) DeleteVideo(ctx context.Context, id string) error {
	meta, err := s.GetVideo(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if err := os.Remove(meta.BlobPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete video blob: %w", err)
	}
	return nil
}

// CreateSubtitle persists a generated transcript for a video, returning the
// new subtitle ID.
func (s *Store) CreateSubtitle(ctx context.Context, sub types.Subtitle) (string, error) {
	id := uuid.New().String()

	textPath, err := s.blobs.SaveSubtitle(id, sub.Text)
	if err != nil {
		return "", fmt.Errorf("failed to save subtitle text: %w", err)
	}

	segmentsJSON, err := json.Marshal(sub.Segments)
	if err != nil {
		return "", fmt.Errorf("failed to marshal segments: %w", err)
	}

	query := `
	INSERT INTO subtitles (id, video_id, language, text_path, segments, word_count, gdrive_url, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, sub.VideoID, sub.Language,
		textPath, string(segmentsJSON), sub.WordCount, sub.DriveURL, time.Now()); err != nil {
		os.Remove(textPath)
		return "", fmt.Errorf("failed to save subtitle metadata: %w", err)
	}

	return id, nil
}

// GetSubtitle retrieves a subtitle (including its text) by ID.
func (s *Store) GetSubtitle(ctx context.Context, id string) (*types.Subtitle, error) {
	query := `
	SELECT id, video_id, language, text_path, segments, word_count, gdrive_url, created_at
	FROM subtitles WHERE id = ?
	`
	return s.scanSubtitle(s.db.QueryRowContext(ctx, query, id))
}

// GetSubtitleByVideo retrieves the most recent subtitle for a video.
func (s *Store) GetSubtitleByVideo(ctx context.Context, videoID string) (*types.Subtitle, error) {
	query := `
	SELECT id, video_id, language, text_path, segments, word_count, gdrive_url, created_at
	FROM subtitles WHERE video_id = ? ORDER BY created_at DESC LIMIT 1
	`
	return s.scanSubtitle(s.db.QueryRowContext(ctx, query, videoID))
}

func (s *Store) scanSubtitle(row *sql.Row) (*types.Subtitle, error) {
	var (
		sub          types.Subtitle
		textPath     string
		segmentsJSON sql.NullString
		driveURL     sql.NullString
	)

	err := row.Scan(&sub.ID, &sub.VideoID, &sub.Language, &textPath,
		&segmentsJSON, &sub.WordCount, &driveURL, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subtitle: %w", err)
	}

	text, err := os.ReadFile(textPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle text: %w", err)
	}
	sub.Text = string(text)
	sub.DriveURL = driveURL.String

	if segmentsJSON.Valid && segmentsJSON.String != "" {
		if err := json.Unmarshal([]byte(segmentsJSON.String), &sub.Segments); err != nil {
			return nil, fmt.Errorf("failed to parse segments: %w", err)
		}
	}

	return &sub, nil
}

// ListVideos returns the most recently stored videos.
func (s *Store) ListVideos(ctx context.Context, limit int) ([]types.VideoMetadata, error) {
	query := `
	SELECT id, file_name, file_size, mime_type, fingerprint, blob_path, created_at
	FROM videos ORDER BY created_at DESC LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []types.VideoMetadata
	for rows.Next() {
		var meta types.VideoMetadata
		if err := rows.Scan(&meta.ID, &meta.FileName, &meta.FileSize, &meta.MimeType,
			&meta.Fingerprint, &meta.BlobPath, &meta.CreatedAt); err != nil {
			continue
		}
		videos = append(videos, meta)
	}

	return videos, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
