// Package parser turns raw device lines into ordered key/value records.
//
// Inbound lines look like "Setpoint:1.00,Input:0.95,Output:12,Kp:2.0".
// A line is telemetry only when it contains both "Setpoint" and "Input"
// somewhere in its text. The measured input is read positionally from the
// second comma-separated segment, whatever its key is called.
package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// SetpointKey is plotted and also exposed as a normal parameter.
	SetpointKey = "Setpoint"
	// InputKey must appear in the text of a telemetry line.
	InputKey = "Input"

	fieldSep = ","
	kvSep    = ":"

	measuredInputPos = 1
)

// Kind classifies a parse failure.
type Kind int

const (
	// NotTelemetry means the line is not a telemetry record. Not an error,
	// callers route it to a diagnostic sink.
	NotTelemetry Kind = iota + 1
	// NumericFormat means Setpoint or the measured input is not a number.
	NumericFormat
)

func (k Kind) String() string {
	switch k {
	case NotTelemetry:
		return "not_telemetry"
	case NumericFormat:
		return "numeric_format"
	default:
		return "unknown"
	}
}

// ParseError is returned for every line that cannot produce a record or sample.
type ParseError struct {
	Kind  Kind
	Line  string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case NotTelemetry:
		return "not a telemetry line"
	case NumericFormat:
		return fmt.Sprintf("numeric format: field %q: %v", e.Field, e.Err)
	default:
		return "parse failure"
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// Field is one key/value pair of a record.
type Field struct {
	Key   string
	Value string
}

// Record is the ordered set of fields of one telemetry line.
// Keys are unique; a repeated key keeps its first position and its last value.
type Record struct {
	Fields []Field

	// second is the raw second comma-separated segment, kept for the
	// positional measured-input rule.
	second    string
	hasSecond bool
}

// Get returns the value bound to key.
func (r Record) Get(key string) (string, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Keys returns the record keys in line order.
func (r Record) Keys() []string {
	keys := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		keys[i] = f.Key
	}
	return keys
}

// IsTelemetry reports whether raw qualifies as a telemetry line.
func IsTelemetry(raw string) bool {
	return strings.Contains(raw, SetpointKey) && strings.Contains(raw, InputKey)
}

// Parse splits a telemetry line into a Record. Tokens without ':' and
// tokens with an empty key are dropped without failing the line.
func Parse(raw string) (Record, error) {
	line := strings.TrimSpace(raw)
	if !IsTelemetry(line) {
		return Record{}, &ParseError{Kind: NotTelemetry, Line: line}
	}

	parts := strings.Split(line, fieldSep)
	rec := Record{Fields: make([]Field, 0, len(parts))}
	if len(parts) > measuredInputPos {
		rec.second = parts[measuredInputPos]
		rec.hasSecond = true
	}

	index := make(map[string]int, len(parts))
	for _, part := range parts {
		key, value, ok := splitToken(part)
		if !ok {
			continue
		}
		if i, seen := index[key]; seen {
			rec.Fields[i].Value = value
			continue
		}
		index[key] = len(rec.Fields)
		rec.Fields = append(rec.Fields, Field{Key: key, Value: value})
	}
	return rec, nil
}

// Values coerces the plotted pair. Setpoint defaults to 0 when the line has
// no Setpoint field; the measured input comes from the second segment.
func (r Record) Values() (setpoint, measured float64, err error) {
	if v, ok := r.Get(SetpointKey); ok {
		setpoint, err = parseFinite(v)
		if err != nil {
			return 0, 0, &ParseError{Kind: NumericFormat, Field: SetpointKey, Err: err}
		}
	}

	if !r.hasSecond {
		return 0, 0, &ParseError{Kind: NumericFormat, Field: "#2", Err: errMissingSegment}
	}
	_, raw, ok := strings.Cut(r.second, kvSep)
	if !ok {
		return 0, 0, &ParseError{Kind: NumericFormat, Field: "#2", Err: errMissingValue}
	}
	measured, err = parseFinite(strings.TrimSpace(raw))
	if err != nil {
		return 0, 0, &ParseError{Kind: NumericFormat, Field: "#2", Err: err}
	}
	return setpoint, measured, nil
}

func splitToken(tok string) (key, value string, ok bool) {
	k, v, found := strings.Cut(tok, kvSep)
	if !found {
		return "", "", false
	}
	k = strings.TrimSpace(k)
	if k == "" {
		return "", "", false
	}
	return k, strings.TrimSpace(v), true
}

func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}
