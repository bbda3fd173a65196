package git

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// HTTP fetch with on-disk ETag caching. Cache key is a stable hash of the
// URL; the cached filename carries the last known ETag so revalidation needs
// no side-car metadata: <etag>_<hash>.yaml.

// Remote fetches a URL, revalidating any cached copy with If-None-Match. A
// 304 serves the cached file; any other response overwrites the cache with
// the new body and ETag.
func (f *Fetcher) Remote(ctx context.Context, rawURL string) (string, string, error) {
	dir := filepath.Join(f.cacheRoot, "remotes")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}

	hash := urlHash(rawURL)
	cachedPath, cachedETag := f.findCached(dir, hash)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", err
	}
	if cachedETag != "" {
		req.Header.Set("If-None-Match", `"`+cachedETag+`"`)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Network failure: a cached copy still serves.
		if cachedPath != "" {
			content, readErr := os.ReadFile(cachedPath)
			if readErr == nil {
				f.log.Debugw("serving stale remote cache", "url", rawURL)
				return cachedPath, string(content), nil
			}
		}
		return "", "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified && cachedPath != "" {
		content, err := os.ReadFile(cachedPath)
		if err != nil {
			return "", "", err
		}
		return cachedPath, string(content), nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", rawURL, err)
	}

	if cachedPath != "" {
		_ = os.Remove(cachedPath)
	}
	etag := sanitizeETag(resp.Header.Get("ETag"))
	path := filepath.Join(dir, etag+"_"+hash+".yaml")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", "", err
	}
	return path, string(body), nil
}

// findCached locates the cache file for a URL hash and returns its path and
// the ETag embedded in its name.
func (f *Fetcher) findCached(dir, hash string) (string, string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", ""
	}
	suffix := "_" + hash + ".yaml"
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), suffix) {
			return filepath.Join(dir, entry.Name()), strings.TrimSuffix(entry.Name(), suffix)
		}
	}
	return "", ""
}

func urlHash(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:8])
}

// sanitizeETag reduces an ETag header to filename-safe characters.
func sanitizeETag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	etag = strings.Trim(etag, `"`)
	var b strings.Builder
	for _, r := range etag {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "noetag"
	}
	return b.String()
}
