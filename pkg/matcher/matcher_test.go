package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		relPath  string
		patterns []string
		want     bool
	}{
		{
			name:     "empty pattern list never matches",
			relPath:  "a/b/c.txt",
			patterns: nil,
			want:     false,
		},
		{
			name:     "exact relative path",
			relPath:  "a/b/c.txt",
			patterns: []string{"a/b/c.txt"},
			want:     true,
		},
		{
			name:     "glob on basename component",
			relPath:  "logs/app.tmp",
			patterns: []string{"*.tmp"},
			want:     true,
		},
		{
			name:     "glob does not cross separators on full path",
			relPath:  "a/b/c.txt",
			patterns: []string{"a/*"},
			want:     false,
		},
		{
			name:     "directory name anywhere in the tree",
			relPath:  "src/pkg/__pycache__/mod.pyc",
			patterns: []string{"__pycache__"},
			want:     true,
		},
		{
			name:     "intermediate component",
			relPath:  "a/skipme/c.txt",
			patterns: []string{"skipme"},
			want:     true,
		},
		{
			name:     "question mark wildcard",
			relPath:  "v1",
			patterns: []string{"v?"},
			want:     true,
		},
		{
			name:     "character class",
			relPath:  "file1.log",
			patterns: []string{"file[0-9].log"},
			want:     true,
		},
		{
			name:     "patterns are ORed",
			relPath:  "notes.txt",
			patterns: []string{"*.tmp", "*.txt"},
			want:     true,
		},
		{
			name:     "no pattern matches",
			relPath:  "a/b/c.txt",
			patterns: []string{"*.tmp", "build"},
			want:     false,
		},
		{
			name:     "substring alone does not match",
			relPath:  "building/c.txt",
			patterns: []string{"build"},
			want:     false,
		},
		{
			name:     "malformed pattern matches nothing",
			relPath:  "a.txt",
			patterns: []string{"[unclosed"},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.relPath, tt.patterns))
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(nil))
	assert.NoError(t, Validate([]string{"*.tmp", "__pycache__", "file[0-9]"}))
	assert.Error(t, Validate([]string{"[unclosed"}))
	assert.Error(t, Validate([]string{"*.tmp", "a[b"}))
}
