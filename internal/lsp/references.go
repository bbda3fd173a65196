package lsp

import (
	"context"

	"go.lsp.dev/protocol"

	"github.com/mcncl/gitlab-ci-ls/internal/parser"
	"github.com/mcncl/gitlab-ci-ls/internal/treesitter"
)

// References finds every extends: and needs: site across the indexed files
// that targets the node under the cursor.
func (s *Server) References(ctx context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	pos, _, ok := s.classifyAt(params.TextDocument.URI, params.Position)
	if !ok {
		return nil, nil
	}

	var key string
	switch pos.Kind {
	case treesitter.KindRootNode, treesitter.KindExtend, treesitter.KindNeeds:
		key = pos.Word
	default:
		return nil, nil
	}

	var locations []protocol.Location
	for _, uri := range s.ws.Files() {
		content, ok := s.ws.Content(uri)
		if !ok {
			continue
		}
		for _, extract := range []func(string, string) ([]parser.Element, error){
			parser.ExtractExtendsReferences,
			parser.ExtractNeedsReferences,
		} {
			refs, err := extract(uri, content)
			if err != nil {
				continue
			}
			for _, ref := range refs {
				if ref.Key == key {
					locations = append(locations, toLocation(ref))
				}
			}
		}
	}
	return locations, nil
}
