package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hpungsan/revise/internal/config"
	"github.com/hpungsan/revise/internal/errors"
)

// fileAccess says which side of a transfer a history file path serves.
type fileAccess int

const (
	forExport fileAccess = iota
	forImport
)

// checkFilePath vets an export or import path. It must be a .json name
// with no ".." component and must not be a symlink. Unless
// AllowUnsafePaths is set, the file has to sit directly in the exports
// directory or one of AllowedPaths, never below them. Import paths must
// already exist.
func checkFilePath(path string, access fileAccess, cfg *config.Config) error {
	if strings.TrimSpace(path) == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if hasDotDot(path) {
		return errors.NewInvalidRequest("path must not contain ..")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".json" {
		return errors.NewInvalidRequest("path must end in .json")
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		if err := checkParentDir(filepath.Dir(abs), cfg); err != nil {
			return err
		}
	}
	if access == forImport {
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
	}
	if isSymlink(abs) {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// checkParentDir requires dir to be one of the export roots itself.
func checkParentDir(dir string, cfg *config.Config) error {
	roots, err := exportRoots(cfg)
	if err != nil {
		return err
	}
	if !slices.Contains(roots, filepath.Clean(dir)) {
		return errors.NewInvalidRequest(fmt.Sprintf("path must be directly inside one of %v", roots))
	}
	if isSymlink(dir) {
		return errors.NewInvalidRequest("parent directory must not be a symlink")
	}
	return nil
}

// exportRoots lists the exports directory plus every absolute entry of
// AllowedPaths. Roots that are symlinks are resolved to their targets.
func exportRoots(cfg *config.Config) ([]string, error) {
	def, err := DefaultExportsDir()
	if err != nil {
		return nil, err
	}
	candidates := []string{def}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				candidates = append(candidates, p)
			}
		}
	}

	roots := make([]string, 0, len(candidates))
	for _, c := range candidates {
		root, err := filepath.Abs(filepath.Clean(c))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if isSymlink(root) {
			if root, err = filepath.EvalSymlinks(root); err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve allowed path: %v", err))
			}
		}
		roots = append(roots, root)
	}
	return roots, nil
}

// DefaultExportsDir is <baseDir>/exports.
func DefaultExportsDir() (string, error) {
	base, err := config.BaseDir()
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return filepath.Join(base, "exports"), nil
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// hasDotDot reports a ".." component, splitting on '/' as well as the
// platform separator.
func hasDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	return slices.Contains(parts, "..")
}

var stemReplacer = strings.NewReplacer("/", "-", `\`, "-", "..", "-")

// FileStem turns a session id into a filename stem. Control characters
// are dropped first, then separators and ".." become dashes, and runs of
// dashes collapse. An id with nothing left becomes "unnamed".
func FileStem(id string) string {
	s := strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, id)
	s = stemReplacer.Replace(s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	if s = strings.Trim(s, "-"); s == "" {
		return "unnamed"
	}
	return s
}
