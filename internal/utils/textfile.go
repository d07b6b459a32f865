package utils

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// ReadNonEmptyLines returns the trimmed lines of the file at path, skipping
// blank lines and # comments.
func ReadNonEmptyLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NonEmptyLines(f)
}

func NonEmptyLines(r io.Reader) ([]string, error) {
	var lines []string
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, s.Err()
}
