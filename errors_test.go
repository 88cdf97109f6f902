package sts_test

import (
	"testing"

	goerrors "github.com/goliatone/go-errors"
	sts "github.com/goliatone/go-sts"
	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      *goerrors.Error
		category goerrors.Category
		textCode string
	}{
		{"missing context", sts.ErrMissingContext, goerrors.CategoryBadInput, sts.TextCodeMissingContext},
		{"missing store", sts.ErrMissingStore, goerrors.CategoryBadInput, sts.TextCodeMissingStore},
		{"missing subject", sts.ErrMissingSubject, goerrors.CategoryBadInput, sts.TextCodeMissingSubject},
		{"missing external identity", sts.ErrMissingExternalIdentity, goerrors.CategoryBadInput, sts.TextCodeMissingExternalUser},
		{"invalid subject", sts.ErrInvalidSubject, goerrors.CategoryNotFound, sts.TextCodeInvalidSubject},
		{"unsupported key type", sts.ErrUnsupportedKeyType, goerrors.CategoryValidation, sts.TextCodeUnsupportedKeyType},
		{"no user factory", sts.ErrNoUserFactory, goerrors.CategoryValidation, sts.TextCodeNoUserFactory},
		{"capability", sts.ErrCapabilityNotSupported, goerrors.CategoryOperation, sts.TextCodeCapabilityMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.textCode, tt.err.TextCode)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}
