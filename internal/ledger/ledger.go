// Package ledger records the content digest of every indexed file so a run
// can tell which files changed since the last one.
//
// The ledger is loaded at the start of a run, updated in memory while the
// run diffs the tree, and written back in full only after the store has
// been brought up to date. A run that fails before Persist leaves the file
// on disk untouched, so the next run recomputes the same changes.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"sort"
)

// FileName is the ledger's file name inside the index directory.
const FileName = "ledger.json"

// ErrCorrupt is returned by Load when the ledger file cannot be decoded.
var ErrCorrupt = errors.New("ledger file is corrupt")

// DigestFunc computes the digest of one file. An error means the file is
// treated as absent.
type DigestFunc func(path string) (string, error)

// Diff partitions the current files against the recorded state. All slices
// are sorted.
type Diff struct {
	Changed   []string
	Removed   []string
	Unchanged []string
}

// Empty reports whether nothing was changed or removed.
func (d Diff) Empty() bool {
	return len(d.Changed) == 0 && len(d.Removed) == 0
}

// Ledger maps file paths to content digests.
type Ledger struct {
	path    string
	entries map[string]string
}

// New returns an empty ledger that persists to path.
func New(path string) *Ledger {
	return &Ledger{path: path, entries: make(map[string]string)}
}

// Load reads the ledger at path. A missing file yields an empty ledger. A
// file that cannot be decoded also yields an empty, usable ledger, together
// with an error wrapping ErrCorrupt.
func Load(path string) (*Ledger, error) {
	l := New(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return l, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if entries != nil {
		l.entries = entries
	}
	return l, nil
}

// Path returns the file the ledger persists to.
func (l *Ledger) Path() string { return l.path }

// Len returns the number of recorded files.
func (l *Ledger) Len() int { return len(l.entries) }

// Digest returns the recorded digest for path.
func (l *Ledger) Digest(path string) (string, bool) {
	d, ok := l.entries[path]
	return d, ok
}

// Entries returns a copy of the recorded map.
func (l *Ledger) Entries() map[string]string {
	return maps.Clone(l.entries)
}

// Diff compares the current files with the recorded digests. Entries for
// changed files are updated and entries for removed files dropped right
// away; nothing is written until Persist.
func (l *Ledger) Diff(files []string, digest DigestFunc) Diff {
	var d Diff
	current := make(map[string]bool, len(files))

	for _, f := range files {
		if current[f] {
			continue
		}
		sum, err := digest(f)
		if err != nil {
			// Vanished or unreadable: handled as if it were not there.
			continue
		}
		current[f] = true

		if old, ok := l.entries[f]; ok && old == sum {
			d.Unchanged = append(d.Unchanged, f)
			continue
		}
		l.entries[f] = sum
		d.Changed = append(d.Changed, f)
	}

	for f := range l.entries {
		if !current[f] {
			d.Removed = append(d.Removed, f)
			delete(l.entries, f)
		}
	}

	sort.Strings(d.Changed)
	sort.Strings(d.Removed)
	sort.Strings(d.Unchanged)
	return d
}

// Replace discards every entry and records the given map instead.
func (l *Ledger) Replace(entries map[string]string) {
	l.entries = maps.Clone(entries)
	if l.entries == nil {
		l.entries = make(map[string]string)
	}
}

// Forget drops the entry for path so the next run treats it as new.
func (l *Ledger) Forget(path string) {
	delete(l.entries, path)
}

// Persist writes the full map to disk, replacing the previous file
// atomically.
func (l *Ledger) Persist() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// FileDigest returns the hex SHA-256 of a file's content.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
