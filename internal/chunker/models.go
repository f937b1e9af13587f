package chunker

import (
	"fmt"
	"strconv"
)

// Kind classifies a chunk.
type Kind string

const (
	KindFunction Kind = "function"
	KindClass    Kind = "class"
	KindImport   Kind = "import"
)

// Chunk is a contiguous span of one file classified by kind. Line numbers are
// 1-based and inclusive.
type Chunk struct {
	FilePath  string
	Content   string
	StartLine int
	EndLine   int
	Kind      Kind
	Name      string
}

// ID is the store primary key: path plus line range.
func (c Chunk) ID() string {
	return c.FilePath + ":" + strconv.Itoa(c.StartLine) + "-" + strconv.Itoa(c.EndLine)
}

// Type renders the kind with its optional name, e.g. "function:login".
func (c Chunk) Type() string {
	if c.Name == "" {
		return string(c.Kind)
	}
	return string(c.Kind) + ":" + c.Name
}

// ExtractError reports a file whose content could not be scanned at all.
type ExtractError struct {
	Path   string
	Reason string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s: %s", e.Path, e.Reason)
}
