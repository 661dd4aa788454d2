package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// StdinName is the display name used for source read from standard input.
const StdinName = "<stdin>"

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// ReadSource reads the whole program from path, or from stdin when path is
// empty. It also returns the name diagnostics should use for the source.
func ReadSource(path string, stdin io.Reader) (src string, name string, err error) {
	if path == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", StdinName, fmt.Errorf("read standard input: %w", err)
		}
		return string(data), StdinName, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", path, fmt.Errorf("read source: %w", err)
	}
	return string(data), path, nil
}

// WriteOutput writes text to path, or to stdout when path is empty.
func WriteOutput(path string, text string, stdout io.Writer) error {
	if path == "" {
		if _, err := io.WriteString(stdout, text); err != nil {
			return fmt.Errorf("write standard output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
