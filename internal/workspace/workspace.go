package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mcncl/gitlab-ci-ls/internal/graph"
	"github.com/mcncl/gitlab-ci-ls/internal/parser"
)

// IndexingState is the lifecycle of the initial index pass.
type IndexingState int

const (
	StateNew IndexingState = iota
	StateInProgress
	StateCompleted
	StateFailed
)

func (s IndexingState) String() string {
	switch s {
	case StateInProgress:
		return "in-progress"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "new"
	}
}

// Workspace owns the aggregate view of one session: every resolved file's
// text, root-level definitions, stages, variables and components. The RWMutex
// is held for writing across whole indexing passes, so a reader never sees a
// half-built index; this is the gate that makes the indexing state flag
// informational rather than load-bearing.
type Workspace struct {
	mu       sync.RWMutex
	rootDir  string
	resolver *parser.Resolver
	graph    *graph.Graph
	log      *zap.SugaredLogger

	store         map[string]string
	nodes         map[string]map[string]parser.Element
	stages        map[string]parser.Element
	variables     map[string]parser.Element
	components    map[string]parser.Component
	filesIncluded map[string]bool
	state         IndexingState
}

func New(rootDir string, resolver *parser.Resolver, g *graph.Graph, log *zap.SugaredLogger) *Workspace {
	return &Workspace{
		rootDir:       rootDir,
		resolver:      resolver,
		graph:         g,
		log:           log,
		store:         make(map[string]string),
		nodes:         make(map[string]map[string]parser.Element),
		stages:        make(map[string]parser.Element),
		variables:     make(map[string]parser.Element),
		components:    make(map[string]parser.Component),
		filesIncluded: make(map[string]bool),
	}
}

// Index locates the pipeline root file and runs a full resolution pass with
// include following. Branch failures inside the pass are logged by the
// resolver and do not fail indexing; only a missing or unparsable root does.
func (w *Workspace) Index(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateInProgress

	uri, content, err := w.findRootFile()
	if err != nil {
		w.state = StateFailed
		return err
	}

	res, err := w.resolver.Parse(ctx, uri, content, true)
	if err != nil {
		w.log.Warnw("indexing finished with branch errors", "error", err)
	}
	if len(res.Files) == 0 {
		w.state = StateFailed
		return fmt.Errorf("root file %s produced no result", uri)
	}
	w.apply(res)
	w.state = StateCompleted
	w.log.Infow("indexing completed", "files", len(res.Files), "root", uri)
	return nil
}

// IndexDocument re-indexes a single document. With follow (didOpen) the whole
// include graph below it is walked again; without (didChange) only the file's
// own symbols are recomputed, replacing its prior contributions.
func (w *Workspace) IndexDocument(ctx context.Context, uri, content string, follow bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	res, err := w.resolver.Parse(ctx, uri, content, follow)
	if err != nil {
		w.log.Debugw("document pass had errors", "uri", uri, "error", err)
	}
	w.dropFileContributions(uri)
	w.apply(res)
}

// dropFileContributions removes everything a file previously put into the
// aggregate maps, so a re-index fully replaces rather than accretes.
func (w *Workspace) dropFileContributions(uri string) {
	delete(w.nodes, uri)
	for key, el := range w.variables {
		if el.URI == uri {
			delete(w.variables, key)
		}
	}
}

func (w *Workspace) apply(res *parser.ParseResult) {
	for _, f := range res.Files {
		w.store[f.URI] = f.Content
		w.filesIncluded[f.URI] = true
	}
	for uri, nodes := range res.Nodes {
		w.nodes[uri] = nodes
	}
	if len(res.Stages) > 0 {
		// stages: replaces, never merges; the pass already kept only the
		// last-visited list.
		w.stages = make(map[string]parser.Element, len(res.Stages))
		for _, s := range res.Stages {
			w.stages[s.Key] = s
		}
	}
	for _, v := range res.Variables {
		w.variables[v.Key] = v
	}
	for key, c := range res.Components {
		w.components[key] = c
	}
}

func (w *Workspace) findRootFile() (string, string, error) {
	for _, name := range []string{".gitlab-ci.yml", ".gitlab-ci.yaml"} {
		path := filepath.Join(w.rootDir, name)
		content, err := os.ReadFile(path)
		if err == nil {
			return "file://" + filepath.ToSlash(path), string(content), nil
		}
	}
	return "", "", fmt.Errorf("no .gitlab-ci.yml found in %s", w.rootDir)
}

// RootDir returns the workspace root directory.
func (w *Workspace) RootDir() string {
	return w.rootDir
}

// State reports the indexing lifecycle state.
func (w *Workspace) State() IndexingState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// ElementsByKey returns every indexed root-level element with the given key,
// ordered by URI for determinism. Part of parser.NodeIndex.
func (w *Workspace) ElementsByKey(key string) []parser.Element {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.elementsByKeyLocked(key)
}

func (w *Workspace) elementsByKeyLocked(key string) []parser.Element {
	var out []parser.Element
	for _, nodes := range w.nodes {
		if el, ok := nodes[key]; ok {
			out = append(out, el)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

// DefaultBlock returns the workspace's top-level default: block if any file
// defines one. Part of parser.NodeIndex.
func (w *Workspace) DefaultBlock() (parser.Element, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	els := w.elementsByKeyLocked("default")
	if len(els) == 0 {
		return parser.Element{}, false
	}
	return els[0], true
}

// Element returns one file's root-level element by key.
func (w *Workspace) Element(uri, key string) (parser.Element, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	el, ok := w.nodes[uri][key]
	return el, ok
}

// OrderedElements returns a flat list of every indexed element for traversal,
// sorted by URI then key.
func (w *Workspace) OrderedElements() []parser.Element {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var out []parser.Element
	for _, nodes := range w.nodes {
		for _, el := range nodes {
			out = append(out, el)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].URI != out[j].URI {
			return out[i].URI < out[j].URI
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Stage returns a stage definition by name.
func (w *Workspace) Stage(name string) (parser.Element, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	el, ok := w.stages[name]
	return el, ok
}

// Stages returns the defined stage names, sorted.
func (w *Workspace) Stages() []parser.Element {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]parser.Element, 0, len(w.stages))
	for _, el := range w.stages {
		out = append(out, el)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Variable returns a variable definition by key.
func (w *Workspace) Variable(key string) (parser.Element, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	el, ok := w.variables[key]
	return el, ok
}

// Variables returns every indexed variable definition, sorted by key.
func (w *Workspace) Variables() []parser.Element {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]parser.Element, 0, len(w.variables))
	for _, el := range w.variables {
		out = append(out, el)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Component returns a resolved component by its include URI.
func (w *Workspace) Component(uri string) (parser.Component, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.components[uri]
	return c, ok
}

// Content returns the cached raw text of a resolved file.
func (w *Workspace) Content(uri string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	content, ok := w.store[uri]
	return content, ok
}

// Files returns the URIs of every file the index has seen, sorted.
func (w *Workspace) Files() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.filesIncluded))
	for uri := range w.filesIncluded {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

// MergedDefinition resolves an element against its extends chain and returns
// the merged YAML. The workspace itself is the node index.
func (w *Workspace) MergedDefinition(el parser.Element) (string, error) {
	return parser.MergeWithAncestors(w, el)
}
