// Package tokens issues and validates signed identity tokens from
// authenticate results. Tokens carry the security stamp so a later session
// check can be answered by the identity service.
package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	sts "github.com/goliatone/go-sts"
	"github.com/google/uuid"
)

// Claims is the JWT payload of an identity token.
type Claims struct {
	jwt.RegisteredClaims
	Name             string   `json:"name,omitempty"`
	IdentityProvider string   `json:"idp,omitempty"`
	Methods          []string `json:"amr,omitempty"`
	SecurityStamp    string   `json:"security_stamp,omitempty"`
	ClientID         string   `json:"client_id,omitempty"`
}

// Subject rebuilds the subject the token was issued for, carrying the
// security stamp claim when present.
func (c *Claims) Subject() *sts.Subject {
	subject := sts.NewSubject(c.RegisteredClaims.Subject)
	if c.SecurityStamp != "" {
		subject.Claims = append(subject.Claims, sts.NewClaim(sts.ClaimSecurityStamp, c.SecurityStamp))
	}
	return subject
}

// Validator validates tokens.
type Validator interface {
	Validate(token string) (*Claims, error)
}

// Config holds the signing settings of a Service.
type Config struct {
	SigningKey []byte
	Issuer     string
	Audience   []string
	TTL        time.Duration
}

// Service signs tokens with HS256.
type Service struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	ttl        time.Duration
	logger     sts.Logger
	now        func() time.Time
}

var _ Validator = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger sts.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService returns a Service. The signing key is required.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, goerrors.New("token signing key is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}

	s := &Service{
		signingKey: append([]byte(nil), cfg.SigningKey...),
		issuer:     cfg.Issuer,
		audience:   append(jwt.ClaimStrings(nil), cfg.Audience...),
		ttl:        cfg.TTL,
		logger:     sts.DefaultLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Issue signs a token for a successful authenticate result. It returns the
// token and its expiry.
func (s *Service) Issue(result *sts.AuthenticateResult, clientID string) (string, time.Time, error) {
	if result == nil || result.IsError() || result.SubjectID == "" {
		return "", time.Time{}, ErrNoResult
	}

	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   result.SubjectID,
			Audience:  s.audience,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Name:             result.DisplayName,
		IdentityProvider: result.IdentityProvider,
		ClientID:         clientID,
	}
	if result.AuthenticationMethod != "" {
		claims.Methods = []string{result.AuthenticationMethod}
	}
	if stamp, ok := sts.FindClaim(result.Claims, sts.ClaimSecurityStamp); ok {
		claims.SecurityStamp = stamp.Value
	}

	token, err := s.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (s *Service) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}
	return signed, nil
}

// Validate parses and verifies token.
func (s *Service) Validate(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if len(s.audience) > 0 {
		// the primary audience must be present
		opts = append(opts, jwt.WithAudience(s.audience[0]))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			s.logger.Error("unexpected token signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, opts...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode).
			WithCode(ErrTokenMalformed.Code)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// CheckSession validates token and asks svc whether its subject is still
// active. Expired, malformed and inactive tokens all report false; the
// error is only set for store failures.
func CheckSession(ctx context.Context, v Validator, svc sts.IdentityService, token string) (bool, error) {
	claims, err := v.Validate(token)
	if err != nil {
		return false, nil
	}

	ac := &sts.IsActiveContext{Subject: claims.Subject(), ClientID: claims.ClientID}
	if err := svc.IsActive(ctx, ac); err != nil {
		return false, err
	}
	return ac.IsActive, nil
}
