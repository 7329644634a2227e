package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedrelay/feedrelay/pkg/domain"
)

func TestTelegram_SendItem(t *testing.T) {
	var got map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	tg := NewTelegram(Params{Token: "test-token", APIURL: ts.URL})
	item := domain.FeedItem{
		FeedTitle: "Test Feed",
		Title:     "Hello",
		Link:      "https://example.com/hello",
		Published: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
	}

	require.NoError(t, tg.SendItem(context.Background(), "42", item))
	assert.Equal(t, "42", got["chat_id"])
	assert.Contains(t, got["text"], "Test Feed / Hello")
	assert.Contains(t, got["text"], "2025-01-06")
	assert.Contains(t, got["text"], "https://example.com/hello")
}

func TestTelegram_SendAdmin(t *testing.T) {
	var got map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	tg := NewTelegram(Params{Token: "tok", APIURL: ts.URL})
	require.NoError(t, tg.SendAdmin(context.Background(), "admin", "2 feeds failed"))
	assert.Contains(t, got["text"], "2 feeds failed")
}

func TestTelegram_RetryOn429(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"parameters":{"retry_after":0}}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	tg := NewTelegram(Params{Token: "tok", APIURL: ts.URL})
	err := tg.send(context.Background(), "42", "hello")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestTelegram_PermanentErrorNoRetry(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"chat not found"}`))
	}))
	defer ts.Close()

	tg := NewTelegram(Params{Token: "tok", APIURL: ts.URL})
	err := tg.send(context.Background(), "42", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "non-429 failures must not be retried")
}

func TestTelegram_GlobalPacing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	interval := 50 * time.Millisecond
	tg := NewTelegram(Params{Token: "tok", APIURL: ts.URL, MinInterval: interval})

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, tg.send(context.Background(), "42", "msg"))
	}
	// three sends need at least two full spacing intervals between them
	assert.GreaterOrEqual(t, time.Since(start), 2*interval)
}

func TestTelegram_PacingCanceled(t *testing.T) {
	tg := NewTelegram(Params{Token: "tok", MinInterval: time.Hour})
	tg.lastSend = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := tg.send(ctx, "42", "msg")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
