package sts_test

import (
	"testing"

	sts "github.com/goliatone/go-sts"
	"github.com/stretchr/testify/assert"
)

func c(typ, value string) sts.Claim { return sts.NewClaim(typ, value) }

func TestClaimsExcept(t *testing.T) {
	tests := []struct {
		name string
		b    []sts.Claim
		a    []sts.Claim
		want []sts.Claim
	}{
		{
			name: "empty inputs",
			want: []sts.Claim{},
		},
		{
			name: "nothing in common",
			b:    []sts.Claim{c("email", "a@x.com"), c("role", "admin")},
			a:    []sts.Claim{c("role", "user")},
			want: []sts.Claim{c("email", "a@x.com"), c("role", "admin")},
		},
		{
			name: "compares type and value",
			b:    []sts.Claim{c("role", "admin"), c("group", "admin")},
			a:    []sts.Claim{c("role", "admin")},
			want: []sts.Claim{c("group", "admin")},
		},
		{
			name: "drops duplicates within b",
			b:    []sts.Claim{c("role", "x"), c("role", "x"), c("role", "y")},
			want: []sts.Claim{c("role", "x"), c("role", "y")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sts.ClaimsExcept(tt.b, tt.a))
		})
	}
}

func TestMergeClaimsIsIdempotent(t *testing.T) {
	existing := []sts.Claim{c("sub", "1"), c("role", "user")}
	incoming := []sts.Claim{c("role", "user"), c("email", "a@x.com"), c("role", "admin")}

	once := sts.MergeClaims(existing, incoming)
	assert.Equal(t, []sts.Claim{
		c("sub", "1"), c("role", "user"), c("email", "a@x.com"), c("role", "admin"),
	}, once)

	twice := sts.MergeClaims(once, incoming)
	assert.Equal(t, once, twice)
	assert.Empty(t, sts.ClaimsExcept(incoming, once))
}

func TestFilterClaims(t *testing.T) {
	claims := []sts.Claim{c("sub", "1"), c("email", "a@x.com"), c("role", "admin"), c("role", "user")}

	t.Run("empty filter keeps everything", func(t *testing.T) {
		assert.Equal(t, claims, sts.FilterClaims(claims, nil))
	})

	t.Run("keeps requested types", func(t *testing.T) {
		assert.Equal(t,
			[]sts.Claim{c("role", "admin"), c("role", "user")},
			sts.FilterClaims(claims, []string{"role", "missing"}))
	})
}

func TestFindAndStripClaims(t *testing.T) {
	claims := []sts.Claim{c("email", "a@x.com"), c("email_verified", "true"), c("name", "A")}

	found, ok := sts.FindClaim(claims, "email")
	assert.True(t, ok)
	assert.Equal(t, "a@x.com", found.Value)

	_, ok = sts.FindClaim(claims, "missing")
	assert.False(t, ok)

	assert.Equal(t,
		[]sts.Claim{c("name", "A")},
		sts.WithoutClaimTypes(claims, sts.ClaimEmail, sts.ClaimEmailVerified))

	assert.True(t, sts.ContainsClaim(claims, c("name", "A")))
	assert.False(t, sts.ContainsClaim(claims, c("name", "B")))
}
