package duplicate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// FromDir lists the image files under dir as corpus entries, identified by
// filename. A file named exclude (the candidate itself, typically) is
// skipped. A missing directory is an empty corpus, not an error.
func FromDir(dir, exclude string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read corpus directory: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if name == exclude {
			continue
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		entries = append(entries, Entry{ID: name, Path: filepath.Join(dir, name)})
	}
	return entries, nil
}
