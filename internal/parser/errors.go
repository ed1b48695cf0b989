package parser

import "errors"

var (
	errMissingSegment = errors.New("line has no second segment")
	errMissingValue   = errors.New("second segment has no ':' separator")
	errNotFinite      = errors.New("value is not a finite number")
)

// IsKind reports whether err is a *ParseError of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == kind
}

// WriteCommand formats an outbound parameter update as "{key}:{value}\n".
// The value is not validated; the device rejects what it cannot use.
func WriteCommand(key, value string) string {
	return key + kvSep + value + "\n"
}
