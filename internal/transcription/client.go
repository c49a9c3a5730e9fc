package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/codebuildervaibhav/video-ingest/internal/types"
)

// Retry policy defaults. Attempt n waits ~min(backoffBase*2^(n-1), backoffMax)
// before attempt n+1, with jitter.
const (
	DefaultMaxAttempts = 5
	DefaultBackoffBase = 2 * time.Second
	DefaultBackoffMax  = 30 * time.Second
	defaultHTTPTimeout = 120 * time.Second
)

// Error is the failure result of a Transcribe call. Terminal errors must not
// be retried (the request itself is bad); non-terminal errors mean the
// attempts were exhausted and the same call may succeed later.
type Error struct {
	Terminal   bool
	StatusCode int
	Attempts   int
	Message    string
}

func (e *Error) Error() string {
	kind := "exhausted"
	if e.Terminal {
		kind = "terminal"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("transcription failed (%s, status %d, %d attempts): %s", kind, e.StatusCode, e.Attempts, e.Message)
	}
	return fmt.Sprintf("transcription failed (%s, %d attempts): %s", kind, e.Attempts, e.Message)
}

// Result is a completed transcript.
type Result struct {
	Text     string
	Language string
	Segments []types.Segment
	Attempts int
}

// Config holds the transcription API settings.
type Config struct {
	APIURL      string
	APIKey      string
	Model       string
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	HTTPTimeout time.Duration
}

// Client calls the external speech-to-text API. Each Transcribe invocation
// runs a bounded-retry loop; the client itself keeps no state between calls
// and is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
	// sleep is swappable so tests don't wait out real backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a transcription client. Zero-valued retry knobs fall
// back to the package defaults.
func NewClient(config Config) *Client {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = DefaultBackoffBase
	}
	if config.BackoffMax <= 0 {
		config.BackoffMax = DefaultBackoffMax
	}
	if config.HTTPTimeout <= 0 {
		config.HTTPTimeout = defaultHTTPTimeout
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.HTTPTimeout},
		sleep:      sleepCtx,
	}
}

// transcribeRequest is the API request body.
type transcribeRequest struct {
	AssetLocator string `json:"asset_locator"`
	Language     string `json:"language,omitempty"`
	Model        string `json:"model,omitempty"`
}

// transcribeResponse matches the API's JSON output format.
type transcribeResponse struct {
	Text     string          `json:"text"`
	Language string          `json:"language"`
	Segments []types.Segment `json:"segments"`
}

// Transcribe obtains transcript text for the asset at assetLocator.
//
// The retry loop classifies outcomes per attempt:
//   - 2xx with non-empty text: success.
//   - 2xx with empty text: retryable (indistinguishable from a transient
//     API glitch).
//   - 4xx other than 429: terminal, no further attempts.
//   - anything else (5xx, 429, network failure, timeout): retryable.
//
// Retryable failures wait an exponential, jittered backoff between attempts
// and give up after MaxAttempts. Cancelling ctx aborts the in-flight request
// and any pending backoff wait.
func (c *Client) Transcribe(ctx context.Context, assetLocator, languageHint string) (*Result, error) {
	var lastErr *Error

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		result, attemptErr := c.attempt(ctx, assetLocator, languageHint)
		if attemptErr == nil {
			result.Attempts = attempt
			log.Printf("Transcription succeeded for %s (attempt %d/%d, %d segments)",
				assetLocator, attempt, c.config.MaxAttempts, len(result.Segments))
			return result, nil
		}

		attemptErr.Attempts = attempt
		if attemptErr.Terminal {
			log.Printf("Transcription terminal failure for %s: %s", assetLocator, attemptErr.Message)
			return nil, attemptErr
		}
		lastErr = attemptErr

		if attempt < c.config.MaxAttempts {
			wait := c.backoff(attempt)
			log.Printf("Transcription attempt %d/%d failed for %s: %s (retrying in %s)",
				attempt, c.config.MaxAttempts, assetLocator, attemptErr.Message, wait.Round(time.Millisecond))
			if err := c.sleep(ctx, wait); err != nil {
				// Caller gave up; don't schedule further attempts.
				lastErr.Message = fmt.Sprintf("%s; cancelled while waiting to retry: %v", lastErr.Message, err)
				return nil, lastErr
			}
		}
	}

	log.Printf("Transcription exhausted %d attempts for %s: %s", c.config.MaxAttempts, assetLocator, lastErr.Message)
	return nil, lastErr
}

// attempt issues one API call and classifies the outcome.
func (c *Client) attempt(ctx context.Context, assetLocator, languageHint string) (*Result, *Error) {
	body, err := json.Marshal(transcribeRequest{
		AssetLocator: assetLocator,
		Language:     languageHint,
		Model:        c.config.Model,
	})
	if err != nil {
		return nil, &Error{Terminal: true, Message: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Terminal: true, Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Message: fmt.Sprintf("request cancelled: %v", ctx.Err())}
		}
		return nil, &Error{Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := &Error{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("API returned %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
		}
		// Client errors are the caller's problem and won't heal on retry,
		// except 429 which is the API telling us to back off.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			e.Terminal = true
		}
		return nil, e
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("parse response: %v", err)}
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "API returned empty transcript"}
	}

	segments := make([]types.Segment, len(parsed.Segments))
	for i, seg := range parsed.Segments {
		segments[i] = types.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		}
	}

	return &Result{
		Text:     text,
		Language: parsed.Language,
		Segments: segments,
	}, nil
}

// backoff returns the jittered wait after the given attempt number:
// min(base * 2^(n-1), max), scaled by a random factor in [0.5, 1.0].
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.config.BackoffBase
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= c.config.BackoffMax {
			wait = c.config.BackoffMax
			break
		}
	}
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(float64(wait) * jitter)
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
