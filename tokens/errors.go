package tokens

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeTokenExpired   = "STS_TOKEN_EXPIRED"
	TextCodeTokenMalformed = "STS_TOKEN_MALFORMED"
	TextCodeNoResult       = "STS_TOKEN_NO_RESULT"
)

// ErrTokenExpired is returned for tokens past their expiry.
var ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail to parse or verify.
var ErrTokenMalformed = goerrors.New("token malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoResult is returned when issuing from a missing or failed
// authenticate result.
var ErrNoResult = goerrors.New("successful authenticate result required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeNoResult).
	WithCode(goerrors.CodeBadRequest)

// IsMalformed reports whether err is a malformed token error.
func IsMalformed(err error) bool {
	var gerr *goerrors.Error
	return goerrors.As(err, &gerr) && gerr.TextCode == TextCodeTokenMalformed
}

// IsExpired reports whether err is an expired token error.
func IsExpired(err error) bool {
	var gerr *goerrors.Error
	return goerrors.As(err, &gerr) && gerr.TextCode == TextCodeTokenExpired
}
