package dictionary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File is the durable [Store]: an in-memory map persisted to a JSON file.
// Every successful Accept and Merge rewrites the file through a temp-file
// rename, so a crash mid-write leaves the previous version intact.
type File struct {
	path string
	mem  *Memory
}

var _ Store = (*File)(nil)

// OpenFile loads the dictionary at path, creating an empty store when the
// file does not exist yet.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, mem: NewMemory()}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dictionary: read %s: %w", path, err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("dictionary: decode %s: %w", path, err)
	}
	if _, err := f.mem.Merge(entries); err != nil {
		return nil, err
	}
	return f, nil
}

// Apply implements [Store].
func (f *File) Apply(tokens []string) []string { return f.mem.Apply(tokens) }

// Accept implements [Store]. The entry is stored even when persisting fails;
// the error reports the failed write so the caller can surface it.
func (f *File) Accept(original, replacement string) (Entry, error) {
	e, err := f.mem.Accept(original, replacement)
	if err != nil {
		return e, err
	}
	return e, f.save()
}

// Lookup implements [Store].
func (f *File) Lookup(original string) (Entry, bool) { return f.mem.Lookup(original) }

// Entries implements [Store].
func (f *File) Entries() []Entry { return f.mem.Entries() }

// Merge implements [Store].
func (f *File) Merge(entries []Entry) (int, error) {
	changed, err := f.mem.Merge(entries)
	if err != nil {
		return changed, err
	}
	if changed == 0 {
		return 0, nil
	}
	return changed, f.save()
}

// Len implements [Store].
func (f *File) Len() int { return f.mem.Len() }

// save writes the full entry list to a temp file in the target directory and
// renames it over the destination.
func (f *File) save() error {
	data, err := json.MarshalIndent(f.mem.Entries(), "", "  ")
	if err != nil {
		return fmt.Errorf("dictionary: encode: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("dictionary: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".dictionary-*.json")
	if err != nil {
		return fmt.Errorf("dictionary: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("dictionary: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("dictionary: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("dictionary: rename to %s: %w", f.path, err)
	}
	return nil
}
