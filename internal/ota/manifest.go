package ota

import (
	"errors"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// bootstrapFiles are the device-side files the update pipeline must never
// overwrite, since they are what runs before an update is even fetched.
// Grounded in the bootstrap manager's own BOOTSTRAP_PREFIXES / filename
// checks: overwriting any of these mid-update could leave a device unable
// to recover from a failed rollout.
var bootstrapFiles = map[string]bool{
	"main.py":              true,
	"bootstrap_manager.py": true,
	"http_updater.py":      true,
}

var defaultDenyList = []string{".git", "__pycache__", ".pyc", ".bak", "~", ".DS_Store"}

// enumerate walks root/subtree and returns device-relative paths prefixed
// with prefix (e.g. "app" or "shared"), already filtered for bootstrap
// files, dot-directories, and the deny-list. A missing subtree is not an
// error — it simply contributes no files.
func enumerate(rootFS fs.FS, subtree, prefix string, denyList []string) ([]string, error) {
	var out []string
	err := fs.WalkDir(rootFS, subtree, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if isNotExist(err) {
				return fs.SkipDir
			}
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != subtree && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		rel := strings.TrimPrefix(strings.TrimPrefix(p, subtree), "/")
		if isBootstrapPath(rel) {
			return nil
		}
		if isDenied(rel, denyList) {
			return nil
		}
		out = append(out, path.Join(prefix, rel))
		return nil
	})
	if err != nil && !isNotExist(err) {
		return nil, err
	}
	return out, nil
}

func isBootstrapPath(rel string) bool {
	if strings.HasPrefix(rel, "bootstrap/") {
		return true
	}
	return bootstrapFiles[path.Base(rel)]
}

func isDenied(rel string, extra []string) bool {
	for _, pattern := range append(append([]string{}, defaultDenyList...), extra...) {
		if pattern == "" {
			continue
		}
		if strings.Contains(rel, pattern) {
			return true
		}
	}
	return false
}

func sortFiles(files []ManifestFile) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
