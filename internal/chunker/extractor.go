package chunker

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor scans source files line by line and cuts them into chunks.
type Extractor struct {
	registry *Registry
}

// NewExtractor creates an extractor backed by the given registry.
func NewExtractor(r *Registry) *Extractor {
	return &Extractor{registry: r}
}

// Supports reports whether the file's extension has a registered language.
func (e *Extractor) Supports(path string) bool {
	return e.registry.Lookup(path) != nil
}

// Extract returns the chunks of one file in source order. Files with an
// unregistered extension yield no chunks and no error. Lines that match no
// pattern are skipped; only undecodable content is an error.
func (e *Extractor) Extract(path string, src []byte) ([]Chunk, error) {
	spec := e.registry.Lookup(path)
	if spec == nil {
		return nil, nil
	}
	src = bytes.TrimPrefix(src, utf8BOM)
	if !utf8.Valid(src) {
		return nil, &ExtractError{Path: path, Reason: "content is not valid UTF-8"}
	}

	lines := strings.Split(string(src), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	var chunks []Chunk
	// consumed is the first line not yet claimed by a chunk.
	consumed := 0

	for i := 0; i < len(lines); {
		line := strings.TrimRight(lines[i], "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || spec.isComment(trimmed) {
			i++
			continue
		}

		if kind, name, ok := spec.matchDefinition(line); ok {
			first := decoratorStart(spec, lines, i, consumed)
			end := blockEnd(spec, lines, i)
			chunks = append(chunks, Chunk{
				FilePath:  path,
				Content:   strings.Join(lines[first:end], "\n"),
				StartLine: first + 1,
				EndLine:   end,
				Kind:      kind,
				Name:      name,
			})
			i = end
			consumed = end
			continue
		}

		// Imports are only recognized here, outside any consumed block.
		if spec.matchImport(line) {
			chunks = append(chunks, Chunk{
				FilePath:  path,
				Content:   lines[i],
				StartLine: i + 1,
				EndLine:   i + 1,
				Kind:      KindImport,
			})
			consumed = i + 1
		}
		i++
	}

	return chunks, nil
}

// blockEnd returns the exclusive end index of the block starting at start.
// It is always greater than start.
func blockEnd(spec *LanguageSpec, lines []string, start int) int {
	if spec.Block == BraceBlocks {
		return braceBlockEnd(lines, start)
	}
	return indentBlockEnd(spec, lines, start)
}

// decoratorStart returns the index of the first decorator line directly
// above the definition at def, not reaching back past floor.
func decoratorStart(spec *LanguageSpec, lines []string, def, floor int) int {
	if spec.DecoratorPrefix == "" {
		return def
	}
	indent := indentWidth(lines[def])
	first := def
	for first > floor {
		prev := strings.TrimRight(lines[first-1], "\r")
		if !strings.HasPrefix(strings.TrimSpace(prev), spec.DecoratorPrefix) || indentWidth(prev) != indent {
			break
		}
		first--
	}
	return first
}

func indentBlockEnd(spec *LanguageSpec, lines []string, start int) int {
	base := indentWidth(lines[start])
	header := signatureEnd(lines, start)
	end := len(lines)
	for i := header + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || spec.isComment(trimmed) {
			continue
		}
		if indentWidth(lines[i]) <= base {
			end = i
			break
		}
	}

	// Trailing blank lines and comments at or left of the definition belong
	// to whatever follows, not to this block.
	for end > header+1 {
		trimmed := strings.TrimSpace(lines[end-1])
		if trimmed == "" || (spec.isComment(trimmed) && indentWidth(lines[end-1]) <= base) {
			end--
			continue
		}
		break
	}
	return end
}

// signatureEnd returns the index of the line that closes a definition's
// header. A header spans lines while a bracket opened on it is unclosed; if
// the brackets never balance, the header is the definition line alone.
func signatureEnd(lines []string, start int) int {
	depth := 0
	for i := start; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth--
			}
		}
		if depth <= 0 {
			return i
		}
	}
	return start
}

// braceBlockEnd counts braces from the definition line. Braces inside string
// and comment literals are counted like any other.
func braceBlockEnd(lines []string, start int) int {
	depth := 0
	opened := false
	for i := start; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
				opened = true
			case '}':
				if !opened {
					continue
				}
				depth--
				if depth == 0 {
					return i + 1
				}
			}
		}
		if !opened && i == start && singleLineDefinition(lines[i]) {
			return i + 1
		}
	}
	return len(lines)
}

// singleLineDefinition reports whether a definition line without an opening
// brace is complete on its own: a declaration ending in ';' or an arrow
// function with an expression body. Any other line continues until its first
// '{', as with multi-line signatures or a brace on the next line.
func singleLineDefinition(line string) bool {
	trimmed := strings.TrimSpace(line)
	if strings.HasSuffix(trimmed, ";") {
		return true
	}
	if i := strings.LastIndex(trimmed, "=>"); i >= 0 {
		return strings.TrimSpace(trimmed[i+2:]) != ""
	}
	return false
}

func indentWidth(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}
