package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"coderag/internal/store"
	"coderag/internal/walker"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// FormatSize returns a human-readable size string.
func FormatSize(bytes int64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
		kb = 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	}
	return fmt.Sprintf("%d B", bytes)
}

// ExtensionTable renders file counts per extension, most common first.
func ExtensionTable(stats walker.Stats) string {
	exts := make([]string, 0, len(stats.ByExtension))
	for ext := range stats.ByExtension {
		exts = append(exts, ext)
	}
	sort.Slice(exts, func(i, j int) bool {
		ci, cj := stats.ByExtension[exts[i]], stats.ByExtension[exts[j]]
		if ci != cj {
			return ci > cj
		}
		return exts[i] < exts[j]
	})

	rows := make([][]string, 0, len(exts))
	for _, ext := range exts {
		name := ext
		if name == "" {
			name = "(none)"
		}
		rows = append(rows, []string{name, strconv.Itoa(stats.ByExtension[ext])})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Extension", "Files").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := cellStyle
			if row == table.HeaderRow {
				return s.Inherit(titleStyle)
			}
			if col == 1 {
				return s.Align(lipgloss.Right)
			}
			return s
		}).
		Render()
}

// FilesTable renders indexed files with their chunk counts.
func FilesTable(files []store.FileSummary) string {
	rows := make([][]string, len(files))
	for i, f := range files {
		rows[i] = []string{f.Path, strconv.Itoa(f.Chunks)}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("File", "Chunks").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := cellStyle
			if row == table.HeaderRow {
				return s.Inherit(titleStyle)
			}
			return s
		}).
		Render()
}

// ResultsMarkdown formats search results as markdown with fenced code.
// lang maps a file path to a fence language; it may return "".
func ResultsMarkdown(results []store.SearchResult, lang func(path string) string) string {
	var b strings.Builder
	for i, r := range results {
		c := r.Chunk
		fmt.Fprintf(&b, "### %d. `%s` lines %d-%d\n\n", i+1, c.FilePath, c.StartLine, c.EndLine)
		fmt.Fprintf(&b, "*%s* · distance %.4f\n\n", c.Type(), r.Distance)
		fmt.Fprintf(&b, "```%s\n%s\n```\n\n", lang(c.FilePath), c.Content)
	}
	return b.String()
}

// Markdown renders md for a terminal of the given width, falling back to
// the raw text if rendering fails.
func Markdown(md string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
