// Package device provides the short per-installation identifier appended to
// job numbers allocated while offline.
package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// IDLen is the number of characters in a device id.
const IDLen = 4

var validID = regexp.MustCompile(`^[A-Za-z0-9]{4}$`)

// NewID returns the last four hex digits of a random UUID.
func NewID() string {
	s := uuid.NewString()
	return s[len(s)-IDLen:]
}

// Valid reports whether id can be used as a device qualifier.
func Valid(id string) bool {
	return validID.MatchString(id)
}

// Load returns the id persisted at path, creating and persisting a new one on
// first use. An empty path yields a fresh id that lives only for this process.
func Load(path string) (string, error) {
	if path == "" {
		return NewID(), nil
	}

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		id := strings.TrimSpace(string(b))
		if !Valid(id) {
			return "", fmt.Errorf("device id file %s holds invalid id %q", path, id)
		}
		return id, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("read device id: %w", err)
	}

	id := NewID()
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create device id dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}

	return id, nil
}
