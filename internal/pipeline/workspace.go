package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	workspacePrefix   = "temporarios"
	workspaceAttempts = 100
)

// createWorkspace makes a fresh working area named after now under root. A
// name already taken by a concurrent run gets a numeric suffix.
func createWorkspace(root string, now time.Time) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create work root: %w", err)
	}
	base := filepath.Join(root, workspacePrefix+now.Format("20060102150405"))
	dir := base
	for i := 2; i <= workspaceAttempts+1; i++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("create working area: %w", err)
		}
		dir = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("create working area: %s taken %d times", base, workspaceAttempts)
}
