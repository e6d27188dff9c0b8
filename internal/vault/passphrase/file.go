package passphrase

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// FileSource reads the passphrase from a local file. The file must be
// readable only by its owner.
type FileSource struct {
	filePath string
}

var _ Source = (*FileSource)(nil)

// NewFileSource creates a FileSource for the given path.
func NewFileSource(filePath string) (*FileSource, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	return &FileSource{filePath: filePath}, nil
}

// Read returns the stored passphrase after trimming whitespace. Returns an
// error if the file is missing, empty, or has insecure permissions.
func (f *FileSource) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := os.Stat(f.filePath)
	if err != nil {
		return "", err
	}
	if info.Mode().Perm()&0077 != 0 {
		return "", fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", f.filePath, info.Mode().Perm())
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return "", err
	}

	passphrase := strings.TrimSpace(string(data))
	if passphrase == "" {
		return "", fmt.Errorf("empty passphrase file %s", f.filePath)
	}
	return passphrase, nil
}
