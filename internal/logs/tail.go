package logs

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"nwbconv/internal/logging"
)

// TailOptions selects which lines Tail returns.
type TailOptions struct {
	// Limit caps the number of returned lines; zero or less returns all.
	Limit int
	// RunID keeps only lines logged by runs whose id starts with it.
	RunID string
}

// Tail returns the last matching lines of the log at path. A missing file
// yields no lines.
func Tail(path string, opts TailOptions) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("log path %q is a directory", path)
	}

	runID := strings.TrimSpace(opts.RunID)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if opts.Limit <= 0 {
		var lines []string
		for scanner.Scan() {
			if line := scanner.Text(); MatchesRun(line, runID) {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log file: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, opts.Limit)
	count, idx := 0, 0
	for scanner.Scan() {
		line := scanner.Text()
		if !MatchesRun(line, runID) {
			continue
		}
		ring[idx] = line
		idx = (idx + 1) % opts.Limit
		if count < opts.Limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	lines := make([]string, count)
	if count == opts.Limit {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%opts.Limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// MatchesRun reports whether line was logged by a run whose id starts with
// prefix. An empty prefix matches every line.
func MatchesRun(line, prefix string) bool {
	if prefix == "" {
		return true
	}
	if strings.HasPrefix(strings.TrimSpace(line), "{") {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err == nil {
			id, _ := record[logging.FieldRunID].(string)
			return strings.HasPrefix(id, prefix)
		}
	}
	for _, field := range strings.Fields(line) {
		if value, ok := strings.CutPrefix(field, logging.FieldRunID+"="); ok {
			return strings.HasPrefix(strings.Trim(value, `"`), prefix)
		}
	}
	return false
}
