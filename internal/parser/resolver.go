package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// maxIncludeDepth bounds recursive include expansion.
const maxIncludeDepth = 10

// Fetcher retrieves non-local include sources. Implementations cache on disk
// and return the local path of the cached copy alongside its content.
type Fetcher interface {
	ProjectFile(ctx context.Context, project, ref, file string) (path string, content string, err error)
	Remote(ctx context.Context, url string) (path string, content string, err error)
	Component(ctx context.Context, info ComponentInfo) (repoDir string, err error)
}

// IncludeGraph records the edges the resolver discovers while following
// includes.
type IncludeGraph interface {
	AddInclude(from, to string)
}

// Resolver expands a file's include: directive recursively into files and
// their contributed symbols.
type Resolver struct {
	fetcher Fetcher
	graph   IncludeGraph
	rootDir string
	log     *zap.SugaredLogger
}

// NewResolver builds a resolver rooted at the workspace directory. Local
// includes resolve relative to the including file; rootDir is the fallback
// base for files that live outside the workspace, such as fetched copies.
func NewResolver(rootDir string, fetcher Fetcher, graph IncludeGraph, log *zap.SugaredLogger) *Resolver {
	return &Resolver{fetcher: fetcher, graph: graph, rootDir: rootDir, log: log}
}

// Parse runs one resolution pass over a file. With followIncludes the pass
// walks the include graph to depth 10; without it only the file's own symbols
// are extracted. Unreadable or unparsable branches are logged and skipped;
// the returned error aggregates them for the caller's log but never voids the
// partial result.
func (r *Resolver) Parse(ctx context.Context, uri, content string, followIncludes bool) (*ParseResult, error) {
	res := NewParseResult()
	err := r.parseFile(ctx, uri, content, 0, followIncludes, res)
	return res, err
}

func (r *Resolver) parseFile(ctx context.Context, uri, content string, depth int, follow bool, res *ParseResult) error {
	if depth > maxIncludeDepth {
		// Silent truncation; the depth cap is the safety valve, not an error.
		r.log.Debugw("include depth cap reached", "uri", uri)
		return nil
	}
	if !res.AddFile(File{URI: uri, Content: content}) {
		return nil
	}

	var errs error

	nodes, err := ExtractNodes(uri, content)
	if err != nil {
		// The file does not parse; it contributes nothing but sibling
		// branches are unaffected.
		r.log.Warnw("skipping unparsable file", "uri", uri, "error", err)
		return fmt.Errorf("%s: %w", uri, err)
	}
	res.SetNodes(uri, nodes)

	if stages, err := ExtractStages(uri, content); err == nil && len(stages) > 0 {
		// A stages: list replaces any previously seen one; last visited wins.
		res.Stages = stages
	}
	if variables, err := ExtractVariables(uri, content); err == nil {
		res.Variables = append(res.Variables, variables...)
	}

	if !follow {
		return nil
	}

	targets, err := ParseIncludes(content)
	if err != nil {
		return multierr.Append(errs, err)
	}
	for _, target := range targets {
		if err := r.resolveTarget(ctx, uri, target, depth, res); err != nil {
			r.log.Warnw("include branch failed", "uri", uri, "error", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (r *Resolver) resolveTarget(ctx context.Context, fromURI string, target IncludeTarget, depth int, res *ParseResult) error {
	switch t := target.(type) {
	case LocalInclude:
		return r.resolveLocal(ctx, fromURI, t.Path, depth, res)

	case BasicInclude:
		if t.IsURL() {
			return r.resolveRemote(ctx, fromURI, t.Value, depth, res)
		}
		return r.resolveLocal(ctx, fromURI, t.Value, depth, res)

	case RemoteInclude:
		return r.resolveRemote(ctx, fromURI, t.URL, depth, res)

	case ProjectInclude:
		var errs error
		for _, file := range t.Files {
			path, content, err := r.fetcher.ProjectFile(ctx, t.Project, t.Ref, file)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("project %s file %s: %w", t.Project, file, err))
				continue
			}
			childURI := fileURI(path)
			r.graph.AddInclude(fromURI, childURI)
			errs = multierr.Append(errs, r.parseFile(ctx, childURI, content, depth+1, true, res))
		}
		return errs

	case ComponentInclude:
		return r.resolveComponent(ctx, fromURI, t.URI, depth, res)
	}
	return nil
}

func (r *Resolver) resolveLocal(ctx context.Context, fromURI, path string, depth int, res *ParseResult) error {
	// Local paths resolve relative to the including file; files that came in
	// through a fetcher resolve against the workspace root instead.
	baseDir := r.rootDir
	if p := strings.TrimPrefix(fromURI, "file://"); p != fromURI {
		if rel, err := filepath.Rel(r.rootDir, filepath.Dir(p)); err == nil && !strings.HasPrefix(rel, "..") {
			baseDir = filepath.Dir(p)
		}
	}
	files, err := ExpandLocalGlob(baseDir, path)
	if err != nil {
		return fmt.Errorf("local include %s: %w", path, err)
	}
	var errs error
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("read %s: %w", file, err))
			continue
		}
		childURI := fileURI(file)
		r.graph.AddInclude(fromURI, childURI)
		errs = multierr.Append(errs, r.parseFile(ctx, childURI, string(content), depth+1, true, res))
	}
	return errs
}

func (r *Resolver) resolveRemote(ctx context.Context, fromURI, url string, depth int, res *ParseResult) error {
	path, content, err := r.fetcher.Remote(ctx, url)
	if err != nil {
		return fmt.Errorf("remote include %s: %w", url, err)
	}
	childURI := fileURI(path)
	r.graph.AddInclude(fromURI, childURI)
	return r.parseFile(ctx, childURI, content, depth+1, true, res)
}

func (r *Resolver) resolveComponent(ctx context.Context, fromURI, componentURI string, depth int, res *ParseResult) error {
	info, err := ParseComponentURI(componentURI)
	if err != nil {
		return err
	}
	repoDir, err := r.fetcher.Component(ctx, info)
	if err != nil {
		return fmt.Errorf("component %s: %w", componentURI, err)
	}
	template, err := info.FindTemplate(repoDir)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(template)
	if err != nil {
		return fmt.Errorf("read component template: %w", err)
	}

	inputs, err := ParseComponentSpec(string(content))
	if err != nil {
		r.log.Warnw("component spec unparsable", "component", componentURI, "error", err)
	}
	res.Components[componentURI] = Component{
		URI:       componentURI,
		LocalPath: template,
		Inputs:    inputs,
	}

	childURI := fileURI(template)
	r.graph.AddInclude(fromURI, childURI)
	return r.parseFile(ctx, childURI, string(content), depth+1, true, res)
}

// fileURI renders an absolute path as a file:// URI string.
func fileURI(path string) string {
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "file://" + path
}
