package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Test Feed</title>
  <link>https://example.com</link>
  <item>
    <title>First Article</title>
    <link>https://example.com/first</link>
    <guid>https://example.com/first</guid>
    <description>&lt;p&gt;Some &lt;b&gt;bold&lt;/b&gt; text &amp;amp; more&lt;/p&gt;</description>
    <pubDate>Mon, 06 Jan 2025 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Second Article</title>
    <link>https://example.com/second</link>
  </item>
  <item>
    <title></title>
  </item>
</channel>
</rss>`

func TestParser_Parse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testRSS))
	}))
	defer ts.Close()

	p := NewParser(5*time.Second, "feedrelay-test/1.0")
	items, err := p.Parse(context.Background(), ts.URL)
	require.NoError(t, err)

	// the third entry has no guid/link/title and is dropped
	require.Len(t, items, 2)

	assert.Equal(t, "Test Feed", items[0].FeedTitle)
	assert.Equal(t, ts.URL, items[0].FeedURL)
	assert.Equal(t, "First Article", items[0].Title)
	assert.Equal(t, "https://example.com/first", items[0].GUID)
	assert.Equal(t, "Some bold text & more", items[0].Summary, "summary must be plain text")
	assert.True(t, items[0].HasPublished())
	assert.Equal(t, time.UTC, items[0].Published.Location())

	assert.Equal(t, "Second Article", items[1].Title)
	assert.False(t, items[1].HasPublished(), "missing date stays zero")
}

func TestParser_OrderPreserved(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testRSS))
	}))
	defer ts.Close()

	p := NewParser(5*time.Second, "feedrelay-test/1.0")
	items, err := p.Parse(context.Background(), ts.URL)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "First Article", items[0].Title)
	assert.Equal(t, "Second Article", items[1].Title)
}

func TestParser_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	p := NewParser(5*time.Second, "feedrelay-test/1.0")
	_, err := p.Parse(context.Background(), ts.URL)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindHTTP, fe.Kind)
	assert.Equal(t, ts.URL, fe.URL)
}

func TestParser_Malformed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("this is not a feed"))
	}))
	defer ts.Close()

	p := NewParser(5*time.Second, "feedrelay-test/1.0")
	_, err := p.Parse(context.Background(), ts.URL)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindMalformed, fe.Kind)
}

func TestParser_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(testRSS))
	}))
	defer ts.Close()

	p := NewParser(20*time.Millisecond, "feedrelay-test/1.0")
	_, err := p.Parse(context.Background(), ts.URL)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindTimeout, fe.Kind)
}

func TestParser_NetworkError(t *testing.T) {
	p := NewParser(time.Second, "feedrelay-test/1.0")
	_, err := p.Parse(context.Background(), "http://127.0.0.1:1/feed")
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindNetwork, fe.Kind)
}
