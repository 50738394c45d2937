package audio

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadFileList reads a UTF-8 text file holding one recording path per line.
// Trailing whitespace is stripped and blank lines are skipped.
func ReadFileList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	var files []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r\n")
		if line == "" {
			continue
		}
		files = append(files, line)
	}
	if err := sc.Err(); err != nil {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("scan file list: %w", err)}
	}
	return files, nil
}
