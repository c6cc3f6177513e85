// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// JSON keys of a case record.
const (
	KeyDuration = "trip_duration_days"
	KeyMiles    = "miles_traveled"
	KeyReceipts = "total_receipts_amount"
	KeyInput    = "input"
	KeyExpected = "expected_output"
)

// Case is one trip to be scored.
type Case struct {
	Duration float64 `json:"trip_duration_days" yaml:"trip_duration_days"`
	Miles    float64 `json:"miles_traveled" yaml:"miles_traveled"`
	Receipts float64 `json:"total_receipts_amount" yaml:"total_receipts_amount"`
}

// LabeledCase pairs a Case with the reimbursement the legacy system paid.
type LabeledCase struct {
	Input    Case    `json:"input" yaml:"input"`
	Expected float64 `json:"expected_output" yaml:"expected_output"`
}

// UnmarshalJSON accepts numbers or numeric strings for every field and
// rejects records with missing keys.
func (c *Case) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeCase(data)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

// UnmarshalJSON decodes {"input": {...}, "expected_output": n}.
func (lc *LabeledCase) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeLabeledCase(data)
	if err != nil {
		return err
	}
	*lc = decoded
	return nil
}

// DecodeCase decodes a bare case record.
func DecodeCase(raw []byte) (Case, error) {
	fields, err := object(raw)
	if err != nil {
		return Case{}, err
	}

	var c Case
	if c.Duration, err = number(fields, KeyDuration); err != nil {
		return Case{}, err
	}
	if c.Miles, err = number(fields, KeyMiles); err != nil {
		return Case{}, err
	}
	if c.Receipts, err = number(fields, KeyReceipts); err != nil {
		return Case{}, err
	}
	return c, nil
}

// DecodeLabeledCase decodes a case record carrying an expected output.
func DecodeLabeledCase(raw []byte) (LabeledCase, error) {
	fields, err := object(raw)
	if err != nil {
		return LabeledCase{}, err
	}

	input, ok := fields[KeyInput]
	if !ok {
		return LabeledCase{}, fmt.Errorf("%w: missing %q", ErrInvalidCase, KeyInput)
	}
	c, err := DecodeCase(input)
	if err != nil {
		return LabeledCase{}, err
	}
	expected, err := number(fields, KeyExpected)
	if err != nil {
		return LabeledCase{}, err
	}
	return LabeledCase{Input: c, Expected: expected}, nil
}

func object(raw []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCase, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: record is null", ErrInvalidCase)
	}
	return fields, nil
}

// number reads key as a JSON number or a string holding one.
func number(fields map[string]json.RawMessage, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrInvalidCase, key)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidCase, key, err)
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %q is not numeric", ErrInvalidCase, key, t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %s: unsupported value %s", ErrInvalidCase, key, string(raw))
	}
}
