package niftiio

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carbocation/pfx"
)

// DefaultPrefix marks SPM spatially normalized images ("w" for warped).
const DefaultPrefix = "w"

var extensions = []string{".nii.gz", ".nii"}

// Discover lists the NIfTI files in dir whose base name starts with prefix.
// The prefix match is case-sensitive. Results are sorted lexicographically
// by file name so that subject order is reproducible across platforms.
func Discover(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, pfx.Err(err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !hasNiftiExt(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// SubjectID derives a subject identifier from a file path by dropping the
// directory and the NIfTI extension.
func SubjectID(path string) string {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

func hasNiftiExt(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
