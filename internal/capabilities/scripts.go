package capabilities

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yargevad/filepathx"

	"livepage/internal/utils"
)

// ScriptDir lists the scripts a page may reference, found by a ** glob under
// Root. Names are slash-separated and relative to Root. A missing Root lists
// nothing.
type ScriptDir struct {
	Root    string
	Pattern string
}

const defaultScriptPattern = "**/*.js"

func (d *ScriptDir) ScriptNames(ctx context.Context) ([]string, error) {
	root := strings.TrimSpace(d.Root)
	if root == "" || !utils.DirectoryExists(root) {
		return nil, nil
	}
	pattern := strings.TrimSpace(d.Pattern)
	if pattern == "" {
		pattern = defaultScriptPattern
	}

	matches, err := filepathx.Glob(filepath.Join(root, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob scripts in %s: %w", root, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(root, m)
		if err != nil {
			continue
		}
		names = append(names, filepath.ToSlash(rel))
	}
	sort.Strings(names)
	return names, nil
}
