package sts

import (
	"fmt"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SubjectParser converts a protocol subject identifier into a store key.
type SubjectParser[K comparable] func(subject string) (K, error)

// DefaultSubjectParser returns the parser for the common key kinds. Parse
// failures are reported as errors so malformed subjects never map onto the
// zero key. ok is false when K has no default parser.
func DefaultSubjectParser[K comparable]() (parser SubjectParser[K], ok bool) {
	var zero K
	switch any(zero).(type) {
	case string:
		return castParser[K](func(s string) (any, error) { return s, nil }), true
	case int:
		return castParser[K](func(s string) (any, error) { return strconv.Atoi(strings.TrimSpace(s)) }), true
	case int32:
		return castParser[K](func(s string) (any, error) {
			v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
			return int32(v), err
		}), true
	case uint32:
		return castParser[K](func(s string) (any, error) {
			v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
			return uint32(v), err
		}), true
	case int64:
		return castParser[K](func(s string) (any, error) {
			return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		}), true
	case uuid.UUID:
		return castParser[K](func(s string) (any, error) { return uuid.Parse(strings.TrimSpace(s)) }), true
	default:
		return nil, false
	}
}

// LenientSubjectParser wraps the default parser and maps parse failures to
// the zero key instead of an error.
func LenientSubjectParser[K comparable]() (SubjectParser[K], bool) {
	strict, ok := DefaultSubjectParser[K]()
	if !ok {
		return nil, false
	}
	return func(subject string) (K, error) {
		key, err := strict(subject)
		if err != nil {
			var zero K
			return zero, nil
		}
		return key, nil
	}, true
}

// FormatSubject renders a store key as a protocol subject identifier.
func FormatSubject[K comparable](key K) string {
	if s, ok := any(key).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(key)
}

func castParser[K comparable](parse func(string) (any, error)) SubjectParser[K] {
	return func(subject string) (K, error) {
		var zero K
		v, err := parse(subject)
		if err != nil {
			return zero, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse subject").
				WithTextCode(TextCodeInvalidSubject).
				WithMetadata(map[string]any{"subject": subject})
		}
		key, ok := v.(K)
		if !ok {
			return zero, ErrUnsupportedKeyType
		}
		return key, nil
	}
}
