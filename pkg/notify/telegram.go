// Package notify delivers items and admin reports to Telegram channels via
// the Bot API. Sends are spaced by a global minimum interval because Telegram
// rate-limits per bot, not per chat.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/repeater/v2"

	"github.com/feedrelay/feedrelay/pkg/domain"
)

const defaultAPIURL = "https://api.telegram.org"

// Telegram sends messages through the Bot API
type Telegram struct {
	token       string
	apiURL      string
	client      *http.Client
	minInterval time.Duration

	mu       sync.Mutex
	lastSend time.Time
}

// Params holds Telegram client parameters.
type Params struct {
	Token       string
	Timeout     time.Duration
	MinInterval time.Duration // global spacing between consecutive sends
	APIURL      string        // overridable for tests
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(p Params) *Telegram {
	if p.Timeout == 0 {
		p.Timeout = 10 * time.Second
	}
	if p.APIURL == "" {
		p.APIURL = defaultAPIURL
	}
	return &Telegram{
		token:       p.Token,
		apiURL:      p.APIURL,
		client:      &http.Client{Timeout: p.Timeout},
		minInterval: p.MinInterval,
	}
}

// SendItem delivers a single feed item to the channel.
func (t *Telegram) SendItem(ctx context.Context, chatID string, item domain.FeedItem) error {
	text := fmt.Sprintf("📰 %s / %s\n", item.FeedTitle, item.Title)
	if item.HasPublished() {
		text += item.Published.Format("2006-01-02")
	}
	text += "\n\n" + item.Link
	return t.send(ctx, chatID, text)
}

// SendAdmin delivers an admin notification (errors, overflow, run summary).
func (t *Telegram) SendAdmin(ctx context.Context, chatID, text string) error {
	return t.send(ctx, chatID, "⚠️ "+text)
}

// send posts one message, enforcing the global spacing and retrying rate
// limited requests with backoff. Non-429 failures are returned immediately.
func (t *Telegram) send(ctx context.Context, chatID, text string) error {
	if err := t.pace(ctx); err != nil {
		return err
	}

	var permErr error
	retrier := repeater.NewBackoff(4, time.Second, repeater.WithMaxDelay(time.Minute))
	err := retrier.Do(ctx, func() error {
		err := t.post(ctx, chatID, text)
		if err == nil {
			return nil
		}

		var rle *rateLimitedError
		if errors.As(err, &rle) {
			if rle.retryAfter > 0 {
				select {
				case <-time.After(rle.retryAfter):
				case <-ctx.Done():
					permErr = ctx.Err()
					return nil
				}
			}
			return err // repeater will retry this
		}

		permErr = err // permanent, stop retrying
		return nil
	})
	if err == nil {
		err = permErr
	}
	if err != nil {
		return fmt.Errorf("send message to %s: %w", chatID, err)
	}
	return nil
}

// pace blocks until the global minimum interval since the previous send has
// elapsed. This is the serialization point even when feeds are processed
// concurrently.
func (t *Telegram) pace(ctx context.Context) error {
	if t.minInterval <= 0 {
		return nil
	}

	t.mu.Lock()
	wait := t.minInterval - time.Since(t.lastSend)
	if wait < 0 {
		wait = 0
	}
	t.lastSend = time.Now().Add(wait) // reserve the next send slot
	t.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rateLimitedError is a 429 response, retryable after the indicated delay
type rateLimitedError struct {
	retryAfter time.Duration
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %v", e.retryAfter)
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// post performs a single sendMessage call
func (t *Telegram) post(ctx context.Context, chatID, text string) error {
	payload, err := json.Marshal(map[string]string{"chat_id": chatID, "text": text})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiResp apiResponse
	_ = json.Unmarshal(body, &apiResp)

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(apiResp.Parameters.RetryAfter) * time.Second
		return &rateLimitedError{retryAfter: retryAfter}
	}

	if resp.StatusCode != http.StatusOK || !apiResp.OK {
		return fmt.Errorf("telegram api status %d: %s", resp.StatusCode, apiResp.Description)
	}

	return nil
}
