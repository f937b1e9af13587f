package languages

import (
	"regexp"

	"coderag/internal/chunker"
)

var (
	ecmaFunction = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+|declare\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*[<(]`)
	// const handler = async (req: Request): Promise<void> => {
	ecmaArrow  = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:\([^)]*\)|[A-Za-z_$][\w$]*)\s*(?::[^=]+)?=>`)
	ecmaClass  = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`)
	ecmaImport = regexp.MustCompile(`^\s*import\s+\S`)
)

// ecmaSpec returns a fresh spec shared by JavaScript and TypeScript.
func ecmaSpec(exts ...string) *chunker.LanguageSpec {
	return &chunker.LanguageSpec{
		Block: chunker.BraceBlocks,
		Definitions: []chunker.Definition{
			{Kind: chunker.KindFunction, Pattern: ecmaFunction},
			{Kind: chunker.KindFunction, Pattern: ecmaArrow},
			{Kind: chunker.KindClass, Pattern: ecmaClass},
		},
		Imports:         []*regexp.Regexp{ecmaImport},
		CommentPrefixes: []string{"//", "/*", "*"},
		Extensions:      exts,
	}
}

func RegisterJavaScript(r *chunker.Registry) {
	r.Register("javascript", ecmaSpec("js", "jsx", "mjs", "cjs"))
}
