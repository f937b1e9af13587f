package languages

import (
	"regexp"

	"coderag/internal/chunker"
)

func RegisterGo(r *chunker.Registry) {
	r.Register("go", &chunker.LanguageSpec{
		Block: chunker.BraceBlocks,
		Definitions: []chunker.Definition{
			{Kind: chunker.KindFunction, Pattern: regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?([A-Za-z_]\w*)\s*[\[(]`)},
			{Kind: chunker.KindClass, Pattern: regexp.MustCompile(`^type\s+([A-Za-z_]\w*)(?:\[[^\]]*\])?\s+(?:struct|interface)\b`)},
		},
		Imports: []*regexp.Regexp{
			regexp.MustCompile(`^import\s+(?:[\w.]+\s+)?"`),
		},
		CommentPrefixes: []string{"//", "/*"},
		Extensions:      []string{"go"},
	})
}
