package lsp

import (
	"context"
	"fmt"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/mcncl/gitlab-ci-ls/internal/parser"
	"github.com/mcncl/gitlab-ci-ls/internal/treesitter"
)

// Hover renders the construct under the cursor. For jobs and extends targets
// that is the fully-resolved definition after folding the extends chain; for
// stages and variables, the defining element.
func (s *Server) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	pos, doc, ok := s.classifyAt(params.TextDocument.URI, params.Position)
	if !ok {
		return nil, nil
	}

	switch pos.Kind {
	case treesitter.KindRootNode, treesitter.KindExtend, treesitter.KindNeeds:
		return s.hoverNode(pos.Word)

	case treesitter.KindStage:
		el, ok := s.ws.Stage(pos.Word)
		if !ok {
			return nil, nil
		}
		return s.hoverDefiningElement(fmt.Sprintf("stage `%s`", pos.Word), el), nil

	case treesitter.KindVariable:
		name := variableAt(doc.Line(int(params.Position.Line)), int(params.Position.Character))
		el, ok := s.ws.Variable(name)
		if !ok {
			return nil, nil
		}
		return s.hoverDefiningElement(fmt.Sprintf("variable `%s`", name), el), nil

	case treesitter.KindInclude:
		if pos.Include != nil && pos.Include.Component != nil {
			return s.hoverComponent(pos.Include.Component.URI)
		}
		return nil, nil

	default:
		return nil, nil
	}
}

func (s *Server) hoverNode(key string) (*protocol.Hover, error) {
	els := s.ws.ElementsByKey(key)
	if len(els) == 0 {
		return nil, nil
	}
	merged, err := s.ws.MergedDefinition(els[0])
	if err != nil {
		// Serialization failed; degrade to an empty hover rather than
		// surfacing an internal error to the editor.
		s.log.Warnw("merge serialization failed", "key", key, "error", err)
		return nil, nil
	}
	return markdownHover(fencedYAML(merged)), nil
}

// hoverDefiningElement renders a label plus the line that defines the
// element, pulled from the indexed copy of its file.
func (s *Server) hoverDefiningElement(label string, el parser.Element) *protocol.Hover {
	line := s.definingLine(el)
	if line == "" {
		return markdownHover(label)
	}
	return markdownHover(label + "\n\n" + fencedYAML(line))
}

func (s *Server) definingLine(el parser.Element) string {
	content, ok := s.ws.Content(el.URI)
	if !ok {
		return ""
	}
	lines := strings.Split(content, "\n")
	if el.Range.Start.Line >= len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[el.Range.Start.Line])
}

func (s *Server) hoverComponent(componentURI string) (*protocol.Hover, error) {
	component, ok := s.ws.Component(componentURI)
	if !ok {
		return nil, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "component `%s`\n", component.URI)
	for _, input := range component.Inputs {
		fmt.Fprintf(&b, "\n- `%s`", input.Key)
		if input.Type != "" {
			fmt.Fprintf(&b, " (%s)", input.Type)
		}
		if input.Default != "" {
			fmt.Fprintf(&b, ", default `%s`", input.Default)
		}
		if input.Description != "" {
			fmt.Fprintf(&b, ": %s", input.Description)
		}
	}
	return markdownHover(b.String()), nil
}

func markdownHover(value string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: value,
		},
	}
}

func fencedYAML(content string) string {
	return "```yaml\n" + strings.TrimRight(content, "\n") + "\n```"
}
