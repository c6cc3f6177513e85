package repository

import (
	"bufio"
	"fmt"
	"os"
)

const resultsFileMode = 0o644

// ResultsWriter writes one result line per case.
type ResultsWriter struct {
	f     *os.File
	w     *bufio.Writer
	lines int
}

// CreateResults truncates or creates the results file at path.
func CreateResults(path string) (*ResultsWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, resultsFileMode)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &ResultsWriter{f: f, w: bufio.NewWriter(f)}, nil
}

// WriteLine appends line and a newline.
func (rw *ResultsWriter) WriteLine(line string) error {
	if _, err := rw.w.WriteString(line); err != nil {
		return err
	}
	if err := rw.w.WriteByte('\n'); err != nil {
		return err
	}
	rw.lines++
	return nil
}

// Lines returns the number of lines written so far.
func (rw *ResultsWriter) Lines() int { return rw.lines }

// Close flushes buffered lines and closes the file.
func (rw *ResultsWriter) Close() error {
	flushErr := rw.w.Flush()
	closeErr := rw.f.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
