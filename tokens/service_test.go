package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	sts "github.com/goliatone/go-sts"
	"github.com/goliatone/go-sts/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestService(t *testing.T, key string, c *clock) *Service {
	t.Helper()
	svc, err := NewService(Config{
		SigningKey: []byte(key),
		Issuer:     "https://sts.example.com",
		Audience:   []string{"web"},
		TTL:        time.Hour,
	}, WithClock(c.Now), WithLogger(sts.NopLogger{}))
	require.NoError(t, err)
	return svc
}

func sampleResult() *sts.AuthenticateResult {
	return &sts.AuthenticateResult{
		SubjectID:            "user-1",
		DisplayName:          "Alice Smith",
		Claims:               []sts.Claim{sts.NewClaim(sts.ClaimSecurityStamp, "stamp-1")},
		AuthenticationMethod: sts.AuthMethodExternal,
		IdentityProvider:     "google",
	}
}

func TestServiceIssueAndValidate(t *testing.T) {
	c := &clock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(t, "secret", c)

	token, expiresAt, err := svc.Issue(sampleResult(), "web")
	require.NoError(t, err)
	assert.Equal(t, c.now.Add(time.Hour), expiresAt)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.RegisteredClaims.Subject)
	assert.Equal(t, "Alice Smith", claims.Name)
	assert.Equal(t, "google", claims.IdentityProvider)
	assert.Equal(t, []string{sts.AuthMethodExternal}, claims.Methods)
	assert.Equal(t, "stamp-1", claims.SecurityStamp)
	assert.Equal(t, "web", claims.ClientID)
	assert.NotEmpty(t, claims.ID)

	subject := claims.Subject()
	assert.Equal(t, "user-1", subject.ID)
	stamp, ok := subject.ClaimValue(sts.ClaimSecurityStamp)
	assert.True(t, ok)
	assert.Equal(t, "stamp-1", stamp)
}

func TestServiceValidateFailures(t *testing.T) {
	c := &clock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(t, "secret", c)
	token, _, err := svc.Issue(sampleResult(), "web")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := newTestService(t, "secret", &clock{now: c.now.Add(2 * time.Hour)})
		_, err := later.Validate(token)
		require.Error(t, err)
		assert.True(t, IsExpired(err))
	})

	t.Run("wrong key", func(t *testing.T) {
		other := newTestService(t, "other", c)
		_, err := other.Validate(token)
		require.Error(t, err)
		assert.True(t, IsMalformed(err))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Validate("not.a.token")
		assert.True(t, IsMalformed(err))
	})

	t.Run("unsigned token", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.Validate(unsigned)
		assert.True(t, IsMalformed(err))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewService(Config{SigningKey: []byte("secret"), Issuer: "https://evil.example.com"}, WithClock(c.Now))
		require.NoError(t, err)
		forged, _, err := other.Issue(sampleResult(), "web")
		require.NoError(t, err)
		_, err = svc.Validate(forged)
		assert.True(t, IsMalformed(err))
	})
}

func TestServiceIssueRequiresResult(t *testing.T) {
	svc := newTestService(t, "secret", &clock{now: time.Now()})

	for _, result := range []*sts.AuthenticateResult{nil, sts.NewErrorResult("nope"), {}} {
		_, _, err := svc.Issue(result, "web")
		assert.ErrorIs(t, err, ErrNoResult)
	}
}

func TestNewServiceRequiresKey(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)
}

func TestMultiValidatorKeyRotation(t *testing.T) {
	c := &clock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	retired := newTestService(t, "old", c)
	current := newTestService(t, "new", c)

	oldToken, _, err := retired.Issue(sampleResult(), "web")
	require.NoError(t, err)

	mv := NewMultiValidator(current, nil, retired)
	claims, err := mv.Validate(oldToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.RegisteredClaims.Subject)

	_, err = NewMultiValidator(current).Validate(oldToken)
	assert.True(t, IsMalformed(err))

	expired := ValidatorFunc(func(string) (*Claims, error) { return nil, ErrTokenExpired })
	_, err = NewMultiValidator(expired, retired).Validate(oldToken)
	assert.True(t, IsExpired(err), "non malformed errors stop the chain")

	_, err = NewMultiValidator().Validate(oldToken)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestCheckSession(t *testing.T) {
	ctx := context.Background()
	store, err := memstore.New(memstore.WithLogger(sts.NopLogger{}))
	require.NoError(t, err)

	users, err := sts.NewUserService[*memstore.User, string](store, sts.WithLogger(sts.NopLogger{}))
	require.NoError(t, err)

	lc := &sts.LocalAuthenticationContext{UserName: memstore.SampleUserName, Password: memstore.SamplePassword}
	require.NoError(t, users.AuthenticateLocal(ctx, lc))
	require.NotNil(t, lc.AuthenticateResult)

	svc := newTestService(t, "secret", &clock{now: time.Now()})
	token, _, err := svc.Issue(lc.AuthenticateResult, "web")
	require.NoError(t, err)

	active, err := CheckSession(ctx, svc, users, token)
	require.NoError(t, err)
	assert.True(t, active)

	res, err := store.RotateSecurityStamp(ctx, lc.AuthenticateResult.SubjectID)
	require.NoError(t, err)
	require.True(t, res.Succeeded)

	active, err = CheckSession(ctx, svc, users, token)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = CheckSession(ctx, svc, users, "garbage")
	require.NoError(t, err)
	assert.False(t, active)
}
