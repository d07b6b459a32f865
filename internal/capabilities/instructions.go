package capabilities

import (
	"context"
	"fmt"
	"strings"

	"livepage/internal/utils"
)

// InstructionFile reads one guideline per line; blank lines and # comments
// are skipped. Inline values come first.
type InstructionFile struct {
	Path   string
	Inline []string
}

func (f *InstructionFile) Instructions(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(f.Inline))
	for _, line := range f.Inline {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	path := strings.TrimSpace(f.Path)
	if path == "" || !utils.FileExists(path) {
		return out, nil
	}
	lines, err := utils.ReadNonEmptyLines(path)
	if err != nil {
		return nil, fmt.Errorf("read instructions %s: %w", path, err)
	}
	return append(out, lines...), ctx.Err()
}
