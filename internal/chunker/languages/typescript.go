package languages

import (
	"coderag/internal/chunker"
)

func RegisterTypeScript(r *chunker.Registry) {
	r.Register("typescript", ecmaSpec("ts", "tsx"))
}
