package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestyClient_GetSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		assert.Contains(t, r.Header.Get("User-Agent"), "news-digest")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	c := NewRestyClient(2 * time.Second)
	resp, err := c.Get(context.Background(), srv.URL, map[string]string{"X-Test": "yes", " ": "skipped"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode())
	assert.Equal(t, "short and stout", string(resp.Body()))
}

func TestRestyClient_DoPostsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"ok":true}`, string(raw))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewRestyClient(2 * time.Second)
	resp, err := c.Do(context.Background(), "put", srv.URL, map[string]string{"Content-Type": "application/json"}, []byte(`{"ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
}

func TestRestyClient_HonoursCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRestyClient(time.Second).Get(ctx, srv.URL, nil)
	assert.Error(t, err)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "ok", Snippet([]byte("  ok \n"), 10))
	assert.Equal(t, "", Snippet(nil, 10))

	got := Snippet([]byte(strings.Repeat("日本", 10)), 5)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "日本日本日...", got)
}
