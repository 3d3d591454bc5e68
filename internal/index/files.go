package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// screenplayExtensions lists the file suffixes enumerateFiles treats as
// screenplay source. ".fountain" is the canonical extension; ".spmd" is an
// alternate some Fountain tooling uses for the same plain-text format.
var screenplayExtensions = map[string]bool{
	".fountain": true,
	".spmd":     true,
}

// bibleFileSubstring identifies a world-bible markdown file by name,
// since bibles have no dedicated extension of their own.
const bibleFileSubstring = "bible"

// enumerateFiles walks root, returning screenplay source paths in
// deterministic (lexical) order. Hidden directories (dot-prefixed, e.g.
// ".git", ".scriptrag") are skipped entirely; when recursive is false only
// files directly under root are considered.
func enumerateFiles(root string, recursive bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if screenplayExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate screenplay files: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// enumerateBibles walks root for markdown files whose name identifies them
// as a world bible (e.g. "bible.md", "series-bible.md"). Hidden directories
// are skipped, matching enumerateFiles.
func enumerateBibles(root string, recursive bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		name := strings.ToLower(d.Name())
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if filepath.Ext(name) != ".md" {
			return nil
		}
		if strings.Contains(name, bibleFileSubstring) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate bible files: %w", err)
	}
	sort.Strings(out)
	return out, nil
}
