package sts_test

import (
	"context"
	"testing"

	sts "github.com/goliatone/go-sts"
	"github.com/goliatone/go-sts/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConsentStore(t *testing.T) (*sts.ConsentStore, *recordingSink) {
	t.Helper()
	store, err := memstore.New(memstore.WithSeedUsers(), memstore.WithLogger(sts.NopLogger{}))
	require.NoError(t, err)

	sink := &recordingSink{}
	consents, err := sts.NewConsentStoreFrom(store)
	require.NoError(t, err)
	return consents.WithLogger(sts.NopLogger{}).WithActivitySink(sink), sink
}

func TestConsentStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	consents, sink := newConsentStore(t)

	err := consents.Update(ctx, sts.Consent{
		ClientID: "web",
		Subject:  "sub-1",
		Scopes:   []string{"openid", "email", "openid", " profile "},
	})
	require.NoError(t, err)

	got, err := consents.Load(ctx, "sub-1", "web")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sts.Consent{ClientID: "web", Subject: "sub-1", Scopes: []string{"openid", "email", "profile"}}, *got)
	assert.Equal(t, sts.ActivityEventConsentUpdated, sink.last().EventType)

	require.NoError(t, consents.Update(ctx, sts.Consent{ClientID: "web", Subject: "sub-1", Scopes: []string{"openid"}}))
	got, err = consents.Load(ctx, "sub-1", "web")
	require.NoError(t, err)
	assert.Equal(t, []string{"openid"}, got.Scopes)

	require.NoError(t, consents.Update(ctx, sts.Consent{ClientID: "api", Subject: "sub-1", Scopes: []string{"api"}}))
	all, err := consents.LoadAll(ctx, "sub-1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, consents.Revoke(ctx, "sub-1", "web"))
	got, err = consents.Load(ctx, "sub-1", "web")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, sts.ActivityEventConsentRevoked, sink.last().EventType)
}

func TestConsentStoreEdgeCases(t *testing.T) {
	ctx := context.Background()
	consents, _ := newConsentStore(t)

	t.Run("load all never returns nil", func(t *testing.T) {
		all, err := consents.LoadAll(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, all)
		assert.Empty(t, all)
	})

	t.Run("empty scopes revoke", func(t *testing.T) {
		require.NoError(t, consents.Update(ctx, sts.Consent{ClientID: "web", Subject: "sub-2", Scopes: []string{"openid"}}))
		require.NoError(t, consents.Update(ctx, sts.Consent{ClientID: "web", Subject: "sub-2", Scopes: []string{" "}}))

		got, err := consents.Load(ctx, "sub-2", "web")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("client and subject are required", func(t *testing.T) {
		err := consents.Update(ctx, sts.Consent{Subject: "sub-3", Scopes: []string{"openid"}})
		assert.Error(t, err)
	})

	t.Run("revoking a missing consent is fine", func(t *testing.T) {
		assert.NoError(t, consents.Revoke(ctx, "sub-4", "web"))
	})
}

func TestParseScopes(t *testing.T) {
	assert.Equal(t, []string{"openid", "email"}, sts.ParseScopes("  openid  email openid "))
	assert.Empty(t, sts.ParseScopes(""))
}

func TestNewConsentStoreFromRequiresCapability(t *testing.T) {
	_, err := sts.NewConsentStoreFrom(nopStore[*testUser, int64]{})
	assert.ErrorIs(t, err, sts.ErrCapabilityNotSupported)

	store, err := memstore.New(
		memstore.WithSeedUsers(),
		memstore.WithLogger(sts.NopLogger{}),
		memstore.WithCapabilities(sts.Capabilities{Claims: true}),
	)
	require.NoError(t, err)
	_, err = sts.NewConsentStoreFrom(store)
	assert.ErrorIs(t, err, sts.ErrCapabilityNotSupported)
}
