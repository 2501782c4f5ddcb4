package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/banshee-data/sonar.report/internal/sonar/l1frames"
)

// readRecording loads a JSON-lines file of l1frames.Frame values. Blank
// lines are skipped.
func readRecording(path string) ([]l1frames.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	var out []l1frames.Frame
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<20), 64<<20)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var fr l1frames.Frame
		if err := json.Unmarshal(sc.Bytes(), &fr); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, fr)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	return out, nil
}
