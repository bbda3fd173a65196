package lsp

import "testing"

func TestWordAt(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		character int
		want      string
		wantStart int
		wantEnd   int
	}{
		{"middle of word", "  extends: .base", 13, ".base", 11, 16},
		{"start of word", "  extends: .base", 11, ".base", 11, 16},
		{"end of word", "  extends: .base", 16, ".base", 11, 16},
		{"key token", "build-job:", 3, "build-job", 0, 9},
		{"path token", "  - local: ci/jobs.yml", 14, "ci/jobs.yml", 11, 22},
		{"on whitespace", "a  b", 2, "", 2, 2},
		{"empty line", "", 0, "", 0, 0},
		{"past end of line", "job", 10, "job", 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			word, start, end := wordAt(tt.line, tt.character)
			if word != tt.want || start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("wordAt(%q, %d) = %q, %d, %d; want %q, %d, %d",
					tt.line, tt.character, word, start, end, tt.want, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestVariableAt(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		character int
		want      string
	}{
		{"plain reference", "  script: echo $REGION", 18, "REGION"},
		{"braced reference", "  script: echo ${REGION}", 20, "REGION"},
		{"bare name", "  REGION: eu-west-1", 4, "REGION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := variableAt(tt.line, tt.character); got != tt.want {
				t.Errorf("variableAt(%q, %d) = %q, want %q", tt.line, tt.character, got, tt.want)
			}
		})
	}
}
