package workspace

import (
	"fmt"

	"github.com/mcncl/gitlab-ci-ls/internal/parser"
)

// Diagnostic is one cross-reference issue with the range that triggered it.
type Diagnostic struct {
	Range   parser.Range
	Message string
}

// Diagnostics validates one document's cross-references against the aggregate
// index: extends targets that resolve to no node, stage usages absent from
// the stage definitions, and needs entries naming unknown jobs. A document
// that fails to parse yields no diagnostics here; syntax problems are the
// editor's domain.
func (w *Workspace) Diagnostics(uri, content string) []Diagnostic {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var diags []Diagnostic

	if refs, err := parser.ExtractExtendsReferences(uri, content); err == nil {
		for _, ref := range refs {
			if len(w.elementsByKeyLocked(ref.Key)) == 0 {
				diags = append(diags, Diagnostic{
					Range:   ref.Range,
					Message: fmt.Sprintf("invalid extends: no job or template named %q", ref.Key),
				})
			}
		}
	}

	if refs, err := parser.ExtractStageReferences(uri, content); err == nil {
		for _, ref := range refs {
			if _, ok := w.stages[ref.Key]; !ok {
				diags = append(diags, Diagnostic{
					Range:   ref.Range,
					Message: fmt.Sprintf("stage %q is not defined", ref.Key),
				})
			}
		}
	}

	if refs, err := parser.ExtractNeedsReferences(uri, content); err == nil {
		for _, ref := range refs {
			if len(w.elementsByKeyLocked(ref.Key)) == 0 {
				diags = append(diags, Diagnostic{
					Range:   ref.Range,
					Message: fmt.Sprintf("invalid needs: no job named %q", ref.Key),
				})
			}
		}
	}

	return diags
}
