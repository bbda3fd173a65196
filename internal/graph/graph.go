package graph

import (
	"strings"
	"sync"
)

// Graph tracks which files include which. Both directions are kept so root
// discovery can walk upward from any included file.
type Graph struct {
	mu         sync.Mutex
	includes   map[string]map[string]bool
	includedBy map[string]map[string]bool
}

func New() *Graph {
	return &Graph{
		includes:   make(map[string]map[string]bool),
		includedBy: make(map[string]map[string]bool),
	}
}

// AddInclude records that from includes to.
func (g *Graph) AddInclude(from, to string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.includes[from] == nil {
		g.includes[from] = make(map[string]bool)
	}
	g.includes[from][to] = true
	if g.includedBy[to] == nil {
		g.includedBy[to] = make(map[string]bool)
	}
	g.includedBy[to][from] = true
}

// Includes returns the direct includes of a file.
func (g *Graph) Includes(uri string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return keys(g.includes[uri])
}

// IncludedBy returns the direct includers of a file.
func (g *Graph) IncludedBy(uri string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return keys(g.includedBy[uri])
}

// Roots walks upward from uri and returns every ancestor that qualifies as a
// root file: canonically named, or accepted by isRoot and included by nobody.
// A file with no includers that qualifies on its own returns itself.
func (g *Graph) Roots(uri string, isRoot func(string) bool) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var roots []string
	visited := map[string]bool{uri: true}
	worklist := []string{uri}
	for len(worklist) > 0 {
		current := worklist[0]
		worklist = worklist[1:]

		includers := g.includedBy[current]
		if IsRootFileName(current) || (len(includers) == 0 && isRoot(current)) {
			roots = append(roots, current)
			continue
		}
		for includer := range includers {
			if !visited[includer] {
				visited[includer] = true
				worklist = append(worklist, includer)
			}
		}
	}
	return roots
}

// IsRootFileName reports whether a URI names the canonical pipeline entry
// file.
func IsRootFileName(uri string) bool {
	return strings.HasSuffix(uri, ".gitlab-ci.yml") || strings.HasSuffix(uri, ".gitlab-ci.yaml")
}

func keys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
