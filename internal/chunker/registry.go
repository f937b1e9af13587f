package chunker

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// BlockStyle selects how the end of a definition block is found.
type BlockStyle int

const (
	// IndentBlocks ends a block at the first later line indented no deeper
	// than the definition line.
	IndentBlocks BlockStyle = iota
	// BraceBlocks ends a block where the brace count returns to zero.
	BraceBlocks
)

// Definition is a pattern that starts a function or class block. The first
// capture group of Pattern is the definition's name.
type Definition struct {
	Kind    Kind
	Pattern *regexp.Regexp
}

// LanguageSpec describes how to scan one language family line by line.
type LanguageSpec struct {
	Name        string
	Block       BlockStyle
	Definitions []Definition
	// Imports match single-line import statements at file scope.
	Imports []*regexp.Regexp
	// CommentPrefixes mark full-line comments, checked on trimmed lines.
	CommentPrefixes []string
	// DecoratorPrefix marks lines directly above a definition, at its
	// indent, that belong to its chunk. Empty means none.
	DecoratorPrefix string
	Extensions      []string
}

func (s *LanguageSpec) isComment(trimmed string) bool {
	for _, p := range s.CommentPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// matchDefinition returns the kind and name of a definition starting on line.
func (s *LanguageSpec) matchDefinition(line string) (Kind, string, bool) {
	for _, d := range s.Definitions {
		if m := d.Pattern.FindStringSubmatch(line); m != nil {
			name := ""
			if len(m) > 1 {
				name = m[1]
			}
			return d.Kind, name, true
		}
	}
	return "", "", false
}

func (s *LanguageSpec) matchImport(line string) bool {
	for _, re := range s.Imports {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Registry maps file extensions to language specs.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*LanguageSpec // extension (without dot) → spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		specs: make(map[string]*LanguageSpec),
	}
}

// Register adds a language spec under the given name.
func (r *Registry) Register(name string, spec *LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	spec.Name = name
	for _, ext := range spec.Extensions {
		r.specs[strings.ToLower(ext)] = spec
	}
}

// Lookup returns the spec for a file path based on its extension, or nil.
func (r *Registry) Lookup(path string) *LanguageSpec {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.specs[ext]
}

// LanguageName returns the language name for a file path, or "".
func (r *Registry) LanguageName(path string) string {
	if s := r.Lookup(path); s != nil {
		return s.Name
	}
	return ""
}

// Extensions returns the set of all registered file extensions (without dot).
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.specs))
	for ext := range r.specs {
		exts[ext] = true
	}
	return exts
}
