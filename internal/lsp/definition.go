package lsp

import (
	"context"
	"os"
	"path/filepath"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/mcncl/gitlab-ci-ls/internal/parser"
	"github.com/mcncl/gitlab-ci-ls/internal/treesitter"
)

// Definition resolves the construct under the cursor to the locations that
// define it. Includes resolve to the file itself: a local path, a cached
// clone, or a cached remote fetch.
func (s *Server) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	pos, doc, ok := s.classifyAt(params.TextDocument.URI, params.Position)
	if !ok {
		return nil, nil
	}

	switch pos.Kind {
	case treesitter.KindExtend, treesitter.KindNeeds, treesitter.KindRootNode:
		els := s.ws.ElementsByKey(pos.Word)
		locations := make([]protocol.Location, 0, len(els))
		for _, el := range els {
			locations = append(locations, toLocation(el))
		}
		return locations, nil

	case treesitter.KindStage:
		if el, ok := s.ws.Stage(pos.Word); ok {
			return []protocol.Location{toLocation(el)}, nil
		}
		return nil, nil

	case treesitter.KindVariable:
		name := variableAt(doc.Line(int(params.Position.Line)), int(params.Position.Character))
		if el, ok := s.ws.Variable(name); ok {
			return []protocol.Location{toLocation(el)}, nil
		}
		return nil, nil

	case treesitter.KindInclude:
		return s.includeDefinition(pos.Include)

	default:
		return nil, nil
	}
}

func (s *Server) includeDefinition(info *treesitter.IncludeInfo) ([]protocol.Location, error) {
	if info == nil {
		return nil, nil
	}
	switch {
	case info.Local != nil:
		return s.localFileLocation(info.Local.Path)

	case info.Basic != nil:
		if b := info.Basic; !isRemoteURL(b.Value) {
			return s.localFileLocation(b.Value)
		}
		if path, ok := s.fetcher.CachedRemotePath(info.Basic.Value); ok {
			return fileLocation(path), nil
		}
		return nil, nil

	case info.Remote != nil:
		if path, ok := s.fetcher.CachedRemotePath(info.Remote.URL); ok {
			return fileLocation(path), nil
		}
		return nil, nil

	case info.Project != nil:
		path := s.fetcher.ProjectFilePath(info.Project.Project, info.Project.Ref, info.Project.File)
		if _, err := os.Stat(path); err != nil {
			return nil, nil
		}
		return fileLocation(path), nil

	case info.Component != nil:
		if component, ok := s.ws.Component(info.Component.URI); ok {
			return fileLocation(component.LocalPath), nil
		}
		return nil, nil
	}
	return nil, nil
}

func (s *Server) localFileLocation(path string) ([]protocol.Location, error) {
	full := filepath.Join(s.ws.RootDir(), filepath.FromSlash(path))
	if _, err := os.Stat(full); err != nil {
		return nil, nil
	}
	return fileLocation(full), nil
}

func isRemoteURL(value string) bool {
	return parser.BasicInclude{Value: value}.IsURL()
}

func fileLocation(path string) []protocol.Location {
	return []protocol.Location{{
		URI:   uri.File(path),
		Range: protocol.Range{},
	}}
}
