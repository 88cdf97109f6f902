package sts

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeMissingContext      = "STS_MISSING_CONTEXT"
	TextCodeMissingStore        = "STS_MISSING_STORE"
	TextCodeInvalidHook         = "STS_INVALID_HOOK"
	TextCodeMissingSubject      = "STS_MISSING_SUBJECT"
	TextCodeInvalidSubject      = "STS_INVALID_SUBJECT"
	TextCodeUnsupportedKeyType  = "STS_UNSUPPORTED_KEY_TYPE"
	TextCodeNoUserFactory       = "STS_NO_USER_FACTORY"
	TextCodeCapabilityMissing   = "STS_CAPABILITY_NOT_SUPPORTED"
	TextCodeOperationFailed     = "STS_OPERATION_FAILED"
	TextCodeDuplicateUserName   = "STS_DUPLICATE_USERNAME"
	TextCodeDuplicateUserID     = "STS_DUPLICATE_USER_ID"
	TextCodeDuplicateLogin      = "STS_DUPLICATE_EXTERNAL_LOGIN"
	TextCodeUnknownUser         = "STS_UNKNOWN_USER"
	TextCodeMissingExternalUser = "STS_MISSING_EXTERNAL_IDENTITY"
	TextCodeInvalidConsent      = "STS_INVALID_CONSENT"
)

// ErrMissingContext is returned when an entry point receives a nil request context.
var ErrMissingContext = goerrors.New("request context is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingContext).
	WithCode(goerrors.CodeBadRequest)

// ErrMissingStore is returned when a service is built without a user store.
var ErrMissingStore = goerrors.New("user store is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingStore).
	WithCode(goerrors.CodeBadRequest)

// ErrMissingSubject is returned when a request carries no subject.
var ErrMissingSubject = goerrors.New("subject is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingSubject).
	WithCode(goerrors.CodeBadRequest)

// ErrMissingExternalIdentity is returned when an external authentication
// request carries no external identity.
var ErrMissingExternalIdentity = goerrors.New("external identity is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingExternalUser).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidSubject is returned when a subject cannot be resolved to a user.
var ErrInvalidSubject = goerrors.New("invalid subject identifier", goerrors.CategoryNotFound).
	WithTextCode(TextCodeInvalidSubject).
	WithCode(goerrors.CodeNotFound)

// ErrUnsupportedKeyType is returned at construction when no subject parser
// exists for the store key type.
var ErrUnsupportedKeyType = goerrors.New("key type not supported", goerrors.CategoryValidation).
	WithTextCode(TextCodeUnsupportedKeyType).
	WithCode(goerrors.CodeBadRequest)

// ErrNoUserFactory is returned at construction when new users cannot be
// instantiated for external sign-ups.
var ErrNoUserFactory = goerrors.New("no user factory configured", goerrors.CategoryValidation).
	WithTextCode(TextCodeNoUserFactory).
	WithCode(goerrors.CodeBadRequest)

// ErrCapabilityNotSupported is returned when a component requires a store
// capability the store does not provide.
var ErrCapabilityNotSupported = goerrors.New("store capability not supported", goerrors.CategoryOperation).
	WithTextCode(TextCodeCapabilityMissing).
	WithCode(goerrors.CodeInternal)
