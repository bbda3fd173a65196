package git

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/mcncl/gitlab-ci-ls/internal/parser"
)

// httpTimeout bounds every remote fetch so a slow host cannot stall the
// request being handled.
const httpTimeout = 5 * time.Second

var (
	semverRe     = regexp.MustCompile(`^v?\d+\.\d+\.\d+`)
	commitHashRe = regexp.MustCompile(`^[0-9a-f]{7,40}$`)
)

// Fetcher retrieves remote include sources through the external git binary
// and plain HTTP, caching everything on disk under cacheRoot:
//
//	<root>/<project>/<ref|"default">/   git checkouts
//	<root>/components/<project>/<version>/
//	<root>/remotes/<etag>_<hash>.yaml   HTTP fetches
type Fetcher struct {
	cacheRoot  string
	hosts      []string
	projectMap map[string]string
	client     *http.Client
	log        *zap.SugaredLogger
}

// NewFetcher builds a fetcher. hosts are tried in order for projects without
// an explicit entry in projectMap.
func NewFetcher(cacheRoot string, hosts []string, projectMap map[string]string, log *zap.SugaredLogger) *Fetcher {
	if len(hosts) == 0 {
		hosts = []string{"gitlab.com"}
	}
	return &Fetcher{
		cacheRoot:  cacheRoot,
		hosts:      hosts,
		projectMap: projectMap,
		client:     &http.Client{Timeout: httpTimeout},
		log:        log,
	}
}

// ProjectFile ensures the project is cloned at the given ref and returns the
// path and content of one file inside it.
func (f *Fetcher) ProjectFile(ctx context.Context, project, ref, file string) (string, string, error) {
	refDir := ref
	if refDir == "" {
		refDir = "default"
	}
	dest := filepath.Join(f.cacheRoot, filepath.FromSlash(project), refDir)
	if err := f.ensureClone(ctx, project, ref, dest); err != nil {
		return "", "", err
	}

	path := filepath.Join(dest, filepath.FromSlash(file))
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read %s from %s: %w", file, project, err)
	}
	return path, string(content), nil
}

// Component ensures the component's project is cloned at its version and
// returns the checkout directory.
func (f *Fetcher) Component(ctx context.Context, info parser.ComponentInfo) (string, error) {
	dest := filepath.Join(f.cacheRoot, "components", filepath.FromSlash(info.Project), info.Version)
	hosts := []string{info.Host}
	if err := f.cloneFromHosts(ctx, hosts, info.Project, info.Version, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// ProjectFilePath computes where a project file lives in the cache without
// fetching. Definition lookups use it after the index pass already cloned.
func (f *Fetcher) ProjectFilePath(project, ref, file string) string {
	refDir := ref
	if refDir == "" {
		refDir = "default"
	}
	return filepath.Join(f.cacheRoot, filepath.FromSlash(project), refDir, filepath.FromSlash(file))
}

// CachedRemotePath returns the cache file previously fetched for a URL.
func (f *Fetcher) CachedRemotePath(rawURL string) (string, bool) {
	path, _ := f.findCached(filepath.Join(f.cacheRoot, "remotes"), urlHash(rawURL))
	return path, path != ""
}

// ensureClone reuses a non-empty cached checkout, refreshing mutable branch
// refs with a pull; semver and commit-hash refs are immutable and never
// refreshed. Missing checkouts are shallow-cloned from the configured hosts.
func (f *Fetcher) ensureClone(ctx context.Context, project, ref, dest string) error {
	if dirNonEmpty(dest) {
		if ref != "" && !RefImmutable(ref) {
			f.pull(ctx, dest)
		}
		return nil
	}

	hosts := f.hosts
	if host, ok := f.projectMap[project]; ok {
		hosts = append([]string{host}, hosts...)
	}
	return f.cloneFromHosts(ctx, hosts, project, ref, dest)
}

func (f *Fetcher) cloneFromHosts(ctx context.Context, hosts []string, project, ref, dest string) error {
	if dirNonEmpty(dest) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	var lastErr error
	for _, host := range hosts {
		url := fmt.Sprintf("https://%s/%s.git", host, project)
		args := []string{"clone", "--depth", "1"}
		if ref != "" {
			args = append(args, "--branch", ref)
		}
		args = append(args, url, dest)

		cmd := exec.CommandContext(ctx, "git", args...)
		out, err := cmd.CombinedOutput()
		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("clone %s: %w: %s", url, err, out)
		f.log.Warnw("clone failed", "url", url, "error", err)
		// A partial clone poisons the cache for the next host attempt.
		_ = os.RemoveAll(dest)
	}
	return fmt.Errorf("all hosts failed for %s: %w", project, lastErr)
}

// pull opportunistically refreshes a mutable-branch checkout. Failures are
// logged only; the stale cache still serves.
func (f *Fetcher) pull(ctx context.Context, dir string) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "pull", "--ff-only", "--depth", "1")
	if out, err := cmd.CombinedOutput(); err != nil {
		f.log.Debugw("pull failed", "dir", dir, "error", err, "output", string(out))
	}
}

// RefImmutable reports whether a ref names content that cannot move: a
// semantic version or a commit hash. Anything else is a branch name.
func RefImmutable(ref string) bool {
	return semverRe.MatchString(ref) || commitHashRe.MatchString(ref)
}

func dirNonEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
