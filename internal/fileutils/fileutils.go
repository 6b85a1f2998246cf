// Package fileutils resolves the statement files an import session should
// read: explicit paths are validated, directories are expanded to the
// files matching the template's format.
package fileutils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ledgerpipe/internal/models"
)

// Extensions returns the file extensions accepted for a statement format.
func Extensions(format models.Format) []string {
	switch format {
	case models.FormatExcel:
		return []string{".xlsx", ".xlsm"}
	default:
		return []string{".csv", ".txt"}
	}
}

// FileExists checks if a path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirectoryExists checks if a path exists and is a directory.
func DirectoryExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// ReadStatement reads one statement file.
func ReadStatement(path string) ([]byte, error) {
	if !FileExists(path) {
		return nil, fmt.Errorf("statement file does not exist: %s", path)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read statement file %s: %w", path, err)
	}
	return data, nil
}

// CollectStatementPaths expands the argument list into concrete statement
// files. File arguments are taken as-is regardless of their extension;
// directory arguments are walked and contribute the files whose extension
// matches the format, sorted by path so sessions are reproducible.
func CollectStatementPaths(args []string, format models.Format) ([]string, error) {
	var paths []string
	for _, arg := range args {
		switch {
		case FileExists(arg):
			paths = append(paths, arg)
		case DirectoryExists(arg):
			expanded, err := listByFormat(arg, format)
			if err != nil {
				return nil, err
			}
			if len(expanded) == 0 {
				return nil, fmt.Errorf("directory %s contains no %s statement files", arg, format)
			}
			paths = append(paths, expanded...)
		default:
			return nil, fmt.Errorf("no such file or directory: %s", arg)
		}
	}
	return paths, nil
}

func listByFormat(dir string, format models.Format) ([]string, error) {
	accepted := Extensions(format)

	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range accepted {
			if ext == want {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	sort.Strings(files)
	return files, nil
}
