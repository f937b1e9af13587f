package walker

import (
	"bufio"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreFile holds extra ignore patterns, one per line, at the scan root.
const IgnoreFile = ".coderagignore"

// FileInfo holds metadata about a discovered source file.
type FileInfo struct {
	Path    string
	RelPath string
	Size    int64
}

// Options controls which files a scan yields.
type Options struct {
	// Include patterns without a slash match the base name anywhere in the
	// tree; patterns with a slash match the slash-separated relative path.
	Include []string
	// Ignore patterns match the relative path at any depth.
	Ignore []string
	// MaxFileSize is the largest file size in bytes; zero disables the limit.
	MaxFileSize int64
}

// Stats summarizes a set of scanned files.
type Stats struct {
	Files       int
	ByExtension map[string]int
	TotalBytes  int64
}

// Scan walks the tree rooted at root and returns the files matching the
// include patterns that are not ignored and fit the size limit. Results are
// sorted by relative path.
func Scan(root string, opts Options) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	opts.Ignore = append(append([]string(nil), opts.Ignore...), loadIgnorePatterns(absRoot)...)

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == absRoot {
				return err
			}
			return nil // skip errors, keep walking
		}

		rel, relErr := filepath.Rel(absRoot, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p != absRoot && opts.dirIgnored(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip symlinks.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !opts.included(rel) || opts.ignored(rel) {
			return nil
		}

		// A file whose size cannot be read is excluded.
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
			return nil
		}

		files = append(files, FileInfo{
			Path:    p,
			RelPath: rel,
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// Summarize counts files per extension and totals their sizes.
func Summarize(files []FileInfo) Stats {
	stats := Stats{ByExtension: make(map[string]int)}
	for _, f := range files {
		stats.Files++
		stats.ByExtension[strings.ToLower(path.Ext(f.RelPath))]++
		stats.TotalBytes += f.Size
	}
	return stats
}

func (o Options) included(rel string) bool {
	base := path.Base(rel)
	for _, p := range o.Include {
		target := rel
		if !strings.Contains(p, "/") {
			target = base
		}
		if ok, _ := doublestar.Match(p, target); ok {
			return true
		}
	}
	return false
}

// Matches reports whether a scan would yield the file at rel, leaving the
// size limit aside.
func (o Options) Matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	return o.included(rel) && !o.ignored(rel)
}

// Ignored reports whether a relative path is excluded by the ignore patterns.
func (o Options) Ignored(rel string) bool {
	return o.ignored(filepath.ToSlash(rel))
}

func (o Options) ignored(rel string) bool {
	for _, p := range o.Ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match("**/"+p, rel); ok {
			return true
		}
	}
	return false
}

// DirIgnored reports whether everything below a directory is ignored, so
// the walk can skip it.
func (o Options) DirIgnored(rel string) bool {
	return o.dirIgnored(filepath.ToSlash(rel))
}

func (o Options) dirIgnored(rel string) bool {
	return o.ignored(rel) || o.ignored(rel+"/**")
}

// loadIgnorePatterns reads IgnoreFile from the project root, if present.
func loadIgnorePatterns(root string) []string {
	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}
