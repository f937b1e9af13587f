package languages

import (
	"regexp"

	"coderag/internal/chunker"
)

func RegisterPython(r *chunker.Registry) {
	r.Register("python", &chunker.LanguageSpec{
		Block: chunker.IndentBlocks,
		Definitions: []chunker.Definition{
			{Kind: chunker.KindFunction, Pattern: regexp.MustCompile(`^\s*(?:async\s+)?def\s+(\w+)\s*\(`)},
			{Kind: chunker.KindClass, Pattern: regexp.MustCompile(`^\s*class\s+(\w+)\s*[(:]`)},
		},
		Imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:from\s+\S+\s+)?import\s+\S`),
		},
		CommentPrefixes: []string{"#"},
		DecoratorPrefix: "@",
		Extensions:      []string{"py", "pyi"},
	})
}
