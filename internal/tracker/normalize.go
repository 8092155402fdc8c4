package tracker

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/soniakeys/unit"

	"sunssactor/internal/models"
)

// MissingFieldError reports a telemetry key absent from a status envelope.
// The feed client merges deltas onto a fully populated baseline, so this
// only fires if the initial fetch was incomplete.
type MissingFieldError struct {
	Key string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("status key %s missing", e.Key)
}

// ParseError reports a telemetry value that could not be interpreted.
type ParseError struct {
	Key   string
	Value any
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("status key %s: cannot parse %v: %v", e.Key, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Normalize converts a raw Gen2 status envelope into a snapshot the
// strategies can reason about: sexagesimal RA/Dec strings become decimal
// degrees and the drive mode loses any parenthetical submode.
func Normalize(raw models.RawStatus) (models.StatusSnapshot, error) {
	var snap models.StatusSnapshot
	var err error

	if snap.RACmd, err = hourAngleField(raw, models.KeyRACmd); err != nil {
		return snap, err
	}
	if snap.DecCmd, err = degreeField(raw, models.KeyDecCmd); err != nil {
		return snap, err
	}
	if snap.RA, err = hourAngleField(raw, models.KeyRA); err != nil {
		return snap, err
	}
	if snap.Dec, err = degreeField(raw, models.KeyDec); err != nil {
		return snap, err
	}
	if snap.Altitude, err = floatField(raw, models.KeyAltitude); err != nil {
		return snap, err
	}

	drive, err := stringField(raw, models.KeyTelDrive)
	if err != nil {
		return snap, err
	}
	// Teldrive can carry a submode, as in "Guiding(HSC)".
	if base, _, found := strings.Cut(drive, "("); found {
		drive = base
	}
	snap.DriveMode = drive

	if snap.Shutter, err = stringField(raw, models.KeyShutterPos); err != nil {
		return snap, err
	}

	// Offsets are passed through untouched; they only appear in the audit log.
	ra, ok := raw[models.KeyRAOffset]
	if !ok {
		return snap, &MissingFieldError{Key: models.KeyRAOffset}
	}
	snap.RAOffset = fmt.Sprint(ra)
	dec, ok := raw[models.KeyDecOffset]
	if !ok {
		return snap, &MissingFieldError{Key: models.KeyDecOffset}
	}
	snap.DecOffset = fmt.Sprint(dec)

	return snap, nil
}

// hourAngleField parses an "HH:MM:SS.sss" right ascension into degrees.
func hourAngleField(raw models.RawStatus, key string) (float64, error) {
	s, err := stringField(raw, key)
	if err != nil {
		return 0, err
	}
	neg, a, b, c, err := sexagesimalParts(s)
	if err != nil {
		return 0, &ParseError{Key: key, Value: s, Err: err}
	}
	if neg {
		return 0, &ParseError{Key: key, Value: s, Err: fmt.Errorf("negative right ascension")}
	}
	return unit.NewRA(a, b, c).Rad() * 180 / math.Pi, nil
}

// degreeField parses a "+DD:MM:SS.sss" declination into degrees.
func degreeField(raw models.RawStatus, key string) (float64, error) {
	s, err := stringField(raw, key)
	if err != nil {
		return 0, err
	}
	neg, a, b, c, err := sexagesimalParts(s)
	if err != nil {
		return 0, &ParseError{Key: key, Value: s, Err: err}
	}
	sign := byte('+')
	if neg {
		sign = '-'
	}
	return unit.NewAngle(sign, a, b, c).Deg(), nil
}

// sexagesimalParts splits "[+-]A:B:C" into its components. A and B are
// integral; C may carry a fraction.
func sexagesimalParts(s string) (neg bool, a, b int, c float64, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, 0, 0, 0, fmt.Errorf("empty angle")
	}
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return false, 0, 0, 0, fmt.Errorf("want 3 colon-separated fields, got %d", len(parts))
	}
	if a, err = strconv.Atoi(parts[0]); err != nil {
		return false, 0, 0, 0, err
	}
	if b, err = strconv.Atoi(parts[1]); err != nil {
		return false, 0, 0, 0, err
	}
	if c, err = strconv.ParseFloat(parts[2], 64); err != nil {
		return false, 0, 0, 0, err
	}
	return neg, a, b, c, nil
}

func stringField(raw models.RawStatus, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", &MissingFieldError{Key: key}
	}
	s, ok := v.(string)
	if !ok {
		return "", &ParseError{Key: key, Value: v, Err: fmt.Errorf("want string, got %T", v)}
	}
	return s, nil
}

// floatField accepts the numeric encodings Gen2 actually sends: JSON
// numbers arrive as float64, some keys come through as strings.
func floatField(raw models.RawStatus, key string) (float64, error) {
	v, ok := raw[key]
	if !ok {
		return 0, &MissingFieldError{Key: key}
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, &ParseError{Key: key, Value: v, Err: err}
		}
		return f, nil
	default:
		return 0, &ParseError{Key: key, Value: v, Err: fmt.Errorf("want number, got %T", v)}
	}
}
