// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsutil holds the filesystem housekeeping around scanned files.
package fsutil

import (
	"os"
	"path/filepath"
	"strings"
)

// PruneEmptyParents removes the file's parent directory if empty, then the
// grandparent, stopping at (and never removing) the directory whose base
// name equals rootName.
func PruneEmptyParents(path, rootName string) {
	parent := filepath.Dir(path)
	for i := 0; i < 2; i++ {
		if filepath.Base(parent) == rootName || parent == "/" || parent == "." {
			return
		}
		entries, err := os.ReadDir(parent)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(parent); err != nil {
			return
		}
		parent = filepath.Dir(parent)
	}
}

// CleanSiblings returns every on-disk name a task may have written for the
// given path: the path itself, its _clean and _clean_meta siblings, and,
// when the path already carries a scrub suffix, the reconstructed original.
func CleanSiblings(path string) []string {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	set := map[string]struct{}{path: {}}
	set[filepath.Join(dir, stem+"_clean"+ext)] = struct{}{}
	set[filepath.Join(dir, stem+"_clean_meta"+ext)] = struct{}{}
	if strings.Contains(stem, "_clean") {
		orig := strings.ReplaceAll(stem, "_clean_meta", "")
		orig = strings.ReplaceAll(orig, "_clean", "")
		set[filepath.Join(dir, orig+ext)] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// RemoveAllSiblings deletes every existing sibling and reports the base
// names actually removed.
func RemoveAllSiblings(path string) []string {
	var removed []string
	for _, p := range CleanSiblings(path) {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := os.Remove(p); err == nil {
			removed = append(removed, filepath.Base(p))
		}
	}
	return removed
}
