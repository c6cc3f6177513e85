package repository

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/okian/reimburse/internal/domain/scoring"
)

// Column names of a coefficient table.
const (
	FeatureColumn     = "feature"
	CoefficientColumn = "coefficient"
)

//go:embed default_coefficients.csv
var defaultCoefficients []byte

// LoadTreeModel reads and compiles a tree-ensemble artifact.
func LoadTreeModel(path string) (*scoring.TreeEnsemble, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	e, err := scoring.ParseTreeModel(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return e, nil
}

// LoadCoefficients reads a feature,coefficient CSV table.
func LoadCoefficients(path string) (scoring.CoefficientTable, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCoefficients(bytes.NewReader(data), path)
}

// DefaultCoefficients returns the linear11 table compiled into the binary.
func DefaultCoefficients() (scoring.CoefficientTable, error) {
	return ParseCoefficients(bytes.NewReader(defaultCoefficients), "default_coefficients.csv")
}

// ParseCoefficients parses a CSV table whose header names a feature and a
// coefficient column; other columns are ignored. Row order carries no meaning.
func ParseCoefficients(r io.Reader, name string) (scoring.CoefficientTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s is empty (no header row)", ErrMalformed, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, name, err)
	}

	featureCol, coefCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case FeatureColumn:
			featureCol = i
		case CoefficientColumn:
			coefCol = i
		}
	}
	if featureCol < 0 || coefCol < 0 {
		return nil, fmt.Errorf("%w: %s: header must name %q and %q columns, got %v",
			ErrMalformed, name, FeatureColumn, CoefficientColumn, header)
	}

	table := make(scoring.CoefficientTable)
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, name, err)
		}

		feature := strings.TrimSpace(record[featureCol])
		if feature == "" {
			return nil, fmt.Errorf("%w: %s: row %d has an empty feature name", ErrMalformed, name, row)
		}
		if _, dup := table[feature]; dup {
			return nil, fmt.Errorf("%w: %s: row %d repeats feature %q", ErrMalformed, name, row, feature)
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(record[coefCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: row %d: coefficient %q is not numeric", ErrMalformed, name, row, record[coefCol])
		}
		table[feature] = c
	}
	return table, nil
}
