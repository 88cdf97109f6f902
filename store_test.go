package sts_test

import (
	"testing"

	sts "github.com/goliatone/go-sts"
	"github.com/stretchr/testify/assert"
)

type reportingStore struct {
	nopStore[*testUser, int64]
	caps sts.Capabilities
}

func (r reportingStore) Capabilities() sts.Capabilities { return r.caps }

func TestCapabilities(t *testing.T) {
	t.Run("intersect", func(t *testing.T) {
		a := sts.Capabilities{Claims: true, Roles: true, Email: true}
		b := sts.Capabilities{Claims: true, Email: true, Lockout: true}
		assert.Equal(t, sts.Capabilities{Claims: true, Email: true}, a.Intersect(b))
	})

	t.Run("reporter cannot add what the store lacks", func(t *testing.T) {
		caps := sts.ResolveCapabilities[*testUser, int64](reportingStore{caps: sts.AllCapabilities()})
		assert.Equal(t, sts.Capabilities{}, caps)
	})

	t.Run("interfaces are detected", func(t *testing.T) {
		caps := sts.ResolveCapabilities[*testUser, int64](new(MockUserStore))
		assert.Equal(t, sts.Capabilities{Password: true}, caps)
	})
}

func TestExternalLoginInfo(t *testing.T) {
	a := sts.NewExternalLogin("Google", "1")
	assert.True(t, a.SameProvider(sts.NewExternalLogin("google", "2")))
	assert.True(t, a.Matches(sts.NewExternalLogin("GOOGLE", "1")))
	assert.False(t, a.Matches(sts.NewExternalLogin("google", "2")))
}
