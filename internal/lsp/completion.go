package lsp

import (
	"context"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/mcncl/gitlab-ci-ls/internal/parser"
	"github.com/mcncl/gitlab-ci-ls/internal/treesitter"
)

// Keys that are pipeline configuration rather than jobs; they never complete
// as extends or needs targets.
var reservedRootKeys = map[string]bool{
	"stages":        true,
	"variables":     true,
	"include":       true,
	"default":       true,
	"workflow":      true,
	"image":         true,
	"services":      true,
	"before_script": true,
	"after_script":  true,
	"cache":         true,
	"spec":          true,
}

// Completion offers symbols matching the construct under the cursor: node
// keys for extends/needs, stage names, variable keys. Every item carries a
// text edit over the word the cursor sits in.
func (s *Server) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	pos, doc, ok := s.classifyAt(params.TextDocument.URI, params.Position)
	if !ok {
		return &protocol.CompletionList{}, nil
	}

	line := doc.Line(int(params.Position.Line))
	_, start, end := wordAt(line, int(params.Position.Character))
	editRange := protocol.Range{
		Start: protocol.Position{Line: params.Position.Line, Character: uint32(start)},
		End:   protocol.Position{Line: params.Position.Line, Character: uint32(end)},
	}

	var items []protocol.CompletionItem
	switch pos.Kind {
	case treesitter.KindExtend:
		items = s.nodeCompletions(editRange, func(key string) bool {
			// Extends targets are conventionally dot-prefixed templates, but
			// GitLab allows extending any job.
			return !reservedRootKeys[key]
		})

	case treesitter.KindNeeds:
		items = s.nodeCompletions(editRange, func(key string) bool {
			return !reservedRootKeys[key] && !strings.HasPrefix(key, ".")
		})

	case treesitter.KindRootNode:
		items = s.nodeCompletions(editRange, func(key string) bool {
			return strings.HasPrefix(key, ".")
		})

	case treesitter.KindStage:
		for _, stage := range s.ws.Stages() {
			items = append(items, completionItem(stage.Key, "stage", editRange))
		}

	case treesitter.KindVariable:
		for _, variable := range s.ws.Variables() {
			items = append(items, completionItem(variable.Key, "variable", editRange))
		}

	case treesitter.KindInclude:
		if pos.Include != nil && pos.Include.Component != nil {
			if component, ok := s.ws.Component(pos.Include.Component.URI); ok {
				for _, input := range component.Inputs {
					items = append(items, completionItem(input.Key, input.Description, editRange))
				}
			}
		}
	}

	return &protocol.CompletionList{IsIncomplete: false, Items: items}, nil
}

func (s *Server) nodeCompletions(editRange protocol.Range, keep func(string) bool) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := make(map[string]bool)
	for _, el := range s.ws.OrderedElements() {
		if seen[el.Key] || !keep(el.Key) {
			continue
		}
		seen[el.Key] = true
		items = append(items, completionItem(el.Key, shortURI(el), editRange))
	}
	return items
}

func completionItem(label, detail string, editRange protocol.Range) protocol.CompletionItem {
	item := protocol.CompletionItem{
		Label: label,
		Kind:  protocol.CompletionItemKindReference,
		TextEdit: &protocol.TextEdit{
			Range:   editRange,
			NewText: label,
		},
	}
	if detail != "" {
		item.Detail = detail
	}
	return item
}

func shortURI(el parser.Element) string {
	if i := strings.LastIndex(el.URI, "/"); i >= 0 {
		return el.URI[i+1:]
	}
	return el.URI
}
