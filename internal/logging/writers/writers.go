// Package writers opens log destinations named in configuration.
package writers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	Stdout = "stdout"
	Stderr = "stderr"

	filePrefix = "file://"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Open returns the destination for output: "stdout", "stderr" (also the empty string), a
// file:// URL or a path containing a separator. Files are created with their parent directory
// and appended to. Closing a standard stream is a no-op.
func Open(output string) (io.WriteCloser, error) {
	switch {
	case output == "" || output == Stderr:
		return nopCloser{os.Stderr}, nil
	case output == Stdout:
		return nopCloser{os.Stdout}, nil
	case strings.HasPrefix(output, filePrefix):
		return openFile(strings.TrimPrefix(output, filePrefix))
	case !strings.Contains(output, "://") && strings.ContainsAny(output, `/\`):
		return openFile(output)
	default:
		return nil, fmt.Errorf("unsupported log output: %q", output)
	}
}

// Valid reports whether Open would accept output, without opening anything.
func Valid(output string) bool {
	switch {
	case output == "" || output == Stderr || output == Stdout:
		return true
	case strings.HasPrefix(output, filePrefix):
		return len(output) > len(filePrefix)
	default:
		return !strings.Contains(output, "://") && strings.ContainsAny(output, `/\`)
	}
}

func openFile(path string) (io.WriteCloser, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}
