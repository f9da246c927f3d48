// Package search discovers TPX3 data files under a directory tree.
package search

import (
	"io/fs"
	"path/filepath"
)

// FindTPX3 recursively searches uri for files whose basename matches
// "*.tpx3" (see Find), walking the local filesystem
// directly via filepath.WalkDir; there is no object-store backend in
// scope for this pipeline, so the standard library's directory walk is
// sufficient.
func FindTPX3(uri string) ([]string, error) {
	return Find(uri, "*.tpx3")
}

// Find recursively searches uri for files whose basename matches pattern.
func Find(uri string, pattern string) ([]string, error) {
	var items []string

	err := filepath.WalkDir(uri, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		match, matchErr := filepath.Match(pattern, filepath.Base(path))
		if matchErr != nil {
			return matchErr
		}
		if match {
			items = append(items, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}
