package graph

import (
	"sort"
	"testing"
)

func TestAddInclude(t *testing.T) {
	g := New()
	g.AddInclude("file:///a.yml", "file:///b.yml")
	g.AddInclude("file:///a.yml", "file:///c.yml")
	g.AddInclude("file:///b.yml", "file:///c.yml")

	includes := g.Includes("file:///a.yml")
	sort.Strings(includes)
	if len(includes) != 2 || includes[0] != "file:///b.yml" || includes[1] != "file:///c.yml" {
		t.Errorf("wrong includes: %v", includes)
	}

	includers := g.IncludedBy("file:///c.yml")
	sort.Strings(includers)
	if len(includers) != 2 || includers[0] != "file:///a.yml" || includers[1] != "file:///b.yml" {
		t.Errorf("wrong includers: %v", includers)
	}

	if g.Includes("file:///c.yml") != nil {
		t.Error("leaf file should include nothing")
	}
}

func TestRoots(t *testing.T) {
	g := New()
	g.AddInclude("file:///repo/.gitlab-ci.yml", "file:///repo/jobs.yml")
	g.AddInclude("file:///repo/jobs.yml", "file:///repo/deep.yml")
	g.AddInclude("file:///repo/other.yml", "file:///repo/deep.yml")

	never := func(string) bool { return false }

	roots := g.Roots("file:///repo/deep.yml", never)
	if len(roots) != 1 || roots[0] != "file:///repo/.gitlab-ci.yml" {
		t.Errorf("expected the canonical root, got %v", roots)
	}

	// other.yml qualifies only when the caller accepts it.
	roots = g.Roots("file:///repo/deep.yml", func(uri string) bool {
		return uri == "file:///repo/other.yml"
	})
	sort.Strings(roots)
	if len(roots) != 2 {
		t.Errorf("expected both roots, got %v", roots)
	}
}

func TestRoots_SelfRoot(t *testing.T) {
	g := New()
	roots := g.Roots("file:///repo/.gitlab-ci.yml", func(string) bool { return false })
	if len(roots) != 1 || roots[0] != "file:///repo/.gitlab-ci.yml" {
		t.Errorf("canonical file should be its own root: %v", roots)
	}

	roots = g.Roots("file:///repo/standalone.yml", func(string) bool { return true })
	if len(roots) != 1 || roots[0] != "file:///repo/standalone.yml" {
		t.Errorf("accepted standalone file should be its own root: %v", roots)
	}

	roots = g.Roots("file:///repo/standalone.yml", func(string) bool { return false })
	if roots != nil {
		t.Errorf("rejected standalone file has no roots: %v", roots)
	}
}

func TestIsRootFileName(t *testing.T) {
	tests := []struct {
		uri  string
		want bool
	}{
		{"file:///repo/.gitlab-ci.yml", true},
		{"file:///repo/.gitlab-ci.yaml", true},
		{"file:///repo/jobs.yml", false},
		{"file:///repo/gitlab-ci.txt", false},
	}
	for _, tt := range tests {
		if got := IsRootFileName(tt.uri); got != tt.want {
			t.Errorf("IsRootFileName(%q) = %v, want %v", tt.uri, got, tt.want)
		}
	}
}
