// Package walk expands configured scan paths into the flat file lists a job
// submission wants.
package walk

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Expand resolves paths into an ordered, de-duplicated list of regular files.
// A path that is a regular file is taken as-is; a directory is walked
// recursively. Dot-directories (.git and friends) are skipped. Symlinks are
// not followed.
func Expand(ctx context.Context, paths []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})

	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stating %s: %w", path, err)
		}
		if info.Mode().IsRegular() {
			add(path)
			continue
		}
		if !info.IsDir() {
			continue
		}

		root, err := os.OpenRoot(path)
		if err != nil {
			return nil, fmt.Errorf("opening scan dir %s: %w", path, err)
		}
		err = fs.WalkDir(root.FS(), ".", func(sub string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return fs.SkipAll
			}
			name := d.Name()
			if d.IsDir() {
				if sub != "." && strings.HasPrefix(name, ".") {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || strings.HasPrefix(name, ".") {
				return nil
			}
			add(filepath.Join(path, sub))
			return nil
		})
		cerr := root.Close()
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", path, err)
		}
		if cerr != nil {
			return nil, fmt.Errorf("closing %s: %w", path, cerr)
		}
	}
	return out, nil
}
