package sts

import (
	"context"
	"fmt"
	"strings"
)

// Logger is the structured logger used across the package. Arguments after
// the message are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// IdentityService is the surface the protocol engine consumes. UserService
// implements it for every store/key combination.
type IdentityService interface {
	GetProfileData(ctx context.Context, req *ProfileDataRequest) error
	AuthenticateLocal(ctx context.Context, lc *LocalAuthenticationContext) error
	AuthenticateExternal(ctx context.Context, ec *ExternalAuthenticationContext) error
	IsActive(ctx context.Context, ac *IsActiveContext) error
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] STS " + line(msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] STS " + line(msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] STS " + line(msg, args))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] STS " + line(msg, args))
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// DefaultLogger returns the stdout logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

func line(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(args) {
			fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, "%v", args[i])
		}
	}
	b.WriteByte('\n')
	return b.String()
}
