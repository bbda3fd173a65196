package lsp

import "strings"

// Token scanning on the cursor line. These are the word-boundary helpers the
// handlers use to pick the symbol under the cursor and to compute completion
// edit ranges.

// isWordRune covers the characters GitLab CI symbols are built from: job and
// template names, stage names, variable references, file paths.
func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '-', r == '.', r == '/', r == '$':
		return true
	}
	return false
}

// wordAt returns the token around character on line, with its [start, end)
// column bounds. An empty token means the cursor sits on no word.
func wordAt(line string, character int) (string, int, int) {
	runes := []rune(line)
	if character > len(runes) {
		character = len(runes)
	}

	start := character
	for start > 0 && isWordRune(runes[start-1]) {
		start--
	}
	end := character
	for end < len(runes) && isWordRune(runes[end]) {
		end++
	}
	return string(runes[start:end]), start, end
}

// variableAt returns the variable name under the cursor, unwrapping the
// $NAME and ${NAME} reference forms.
func variableAt(line string, character int) string {
	word, start, _ := wordAt(line, character)
	word = strings.TrimPrefix(word, "$")
	if start > 1 && strings.HasPrefix(line[start-2:], "${") {
		word = strings.TrimSuffix(word, "}")
	}
	return strings.Trim(word, "{}")
}
