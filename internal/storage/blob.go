package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BlobStore writes raw content to the local filesystem under a dated
// directory structure: <root>/videos/2026/08/23/<id>_<name>.
type BlobStore struct {
	rootDir string
}

// NewBlobStore creates a blob store rooted at rootDir.
func NewBlobStore(rootDir string) *BlobStore {
	return &BlobStore{rootDir: rootDir}
}

// SaveVideo writes the uploaded bytes to disk and returns the blob path.
func (bs *BlobStore) SaveVideo(videoID, fileName string, content []byte) (string, error) {
	dir, err := bs.ensureDateDir("videos")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s", videoID, sanitizeFilename(fileName)))
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write video blob: %w", err)
	}
	return path, nil
}

// SaveSubtitle writes transcript text to disk and returns the file path.
func (bs *BlobStore) SaveSubtitle(subtitleID, text string) (string, error) {
	dir, err := bs.ensureDateDir("subtitles")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, subtitleID+".txt")
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("failed to write subtitle: %w", err)
	}
	return path, nil
}

// ensureDateDir creates <root>/<kind>/YYYY/MM/DD and returns it.
func (bs *BlobStore) ensureDateDir(kind string) (string, error) {
	now := time.Now()
	dir := filepath.Join(bs.rootDir, kind,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}
	return dir, nil
}

// sanitizeFilename removes path separators and other invalid characters
// from a client-supplied filename.
func sanitizeFilename(name string) string {
	result := filepath.Base(name)
	for _, ch := range []string{":", "*", "?", "\"", "<", ">", "|"} {
		result = strings.ReplaceAll(result, ch, "_")
	}
	if len(result) > 100 {
		result = result[:100]
	}
	if result == "" || result == "." || result == ".." {
		result = "unnamed"
	}
	return result
}
