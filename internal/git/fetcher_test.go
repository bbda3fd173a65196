package git

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	return NewFetcher(t.TempDir(), nil, nil, zap.NewNop().Sugar())
}

func TestRefImmutable(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"1.2.3", true},
		{"v1.2.3", true},
		{"2.0.0-rc1", true},
		{"abcdef1", true},
		{"0123456789abcdef0123456789abcdef01234567", true},
		{"main", false},
		{"feature/thing", false},
		{"v1", false},
		{"1.2", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RefImmutable(tt.ref), "ref %q", tt.ref)
	}
}

func TestProjectFilePath(t *testing.T) {
	f := NewFetcher("/cache", nil, nil, zap.NewNop().Sugar())

	got := f.ProjectFilePath("group/proj", "main", "/templates/ci.yml")
	assert.Equal(t, filepath.Join("/cache", "group", "proj", "main", "templates", "ci.yml"), got)

	got = f.ProjectFilePath("group/proj", "", "ci.yml")
	assert.Equal(t, filepath.Join("/cache", "group", "proj", "default", "ci.yml"), got)
}

func TestRemote_CachesAndRevalidates(t *testing.T) {
	var requests int
	var lastIfNoneMatch string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		lastIfNoneMatch = r.Header.Get("If-None-Match")
		if lastIfNoneMatch == `"abc123"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"abc123"`)
		_, _ = w.Write([]byte("job:\n  script: echo\n"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	ctx := context.Background()

	path, content, err := f.Remote(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "job:\n  script: echo\n", content)
	assert.Contains(t, filepath.Base(path), "abc123_")
	assert.FileExists(t, path)

	// Second fetch revalidates and is served from the cache on 304.
	path2, content2, err := f.Remote(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, path, path2)
	assert.Equal(t, content, content2)
	assert.Equal(t, `"abc123"`, lastIfNoneMatch)
	assert.Equal(t, 2, requests)

	cached, ok := f.CachedRemotePath(srv.URL)
	require.True(t, ok)
	assert.Equal(t, path, cached)
}

func TestRemote_ReplacesOnChange(t *testing.T) {
	etag := `"one"`
	body := "first: true\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", etag)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	ctx := context.Background()

	first, _, err := f.Remote(ctx, srv.URL)
	require.NoError(t, err)

	etag = `"two"`
	body = "second: true\n"
	second, content, err := f.Remote(ctx, srv.URL)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "second: true\n", content)
	assert.NoFileExists(t, first)
}

func TestRemote_ServesStaleOnNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc"`)
		_, _ = w.Write([]byte("cached: true\n"))
	}))

	f := newTestFetcher(t)
	ctx := context.Background()

	url := srv.URL
	_, _, err := f.Remote(ctx, url)
	require.NoError(t, err)

	srv.Close()

	path, content, err := f.Remote(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, "cached: true\n", content)
	assert.FileExists(t, path)
}

func TestRemote_NoETag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("body: here\n"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	path, _, err := f.Remote(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "noetag_")
}

func TestSanitizeETag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"abc123"`, "abc123"},
		{`W/"weak-etag"`, "weak-etag"},
		{`"a/b\c"`, "abc"},
		{`""`, "noetag"},
		{"", "noetag"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeETag(tt.in), "etag %q", tt.in)
	}
}
