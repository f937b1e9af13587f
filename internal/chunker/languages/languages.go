// Package languages registers the line-scanning rules for each supported
// language family.
package languages

import "coderag/internal/chunker"

// NewRegistry returns a registry with every supported language registered.
func NewRegistry() *chunker.Registry {
	reg := chunker.NewRegistry()
	RegisterGo(reg)
	RegisterJavaScript(reg)
	RegisterTypeScript(reg)
	RegisterPython(reg)
	return reg
}
