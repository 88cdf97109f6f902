package sts_test

import (
	"testing"

	sts "github.com/goliatone/go-sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid password", password: "securePassword123!"},
		{name: "empty password", password: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := sts.HashPassword(tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, sts.ErrNoEmptyString)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, hash)

			ok, err := sts.CheckPasswordHash(tt.password, hash)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestCheckPasswordHash(t *testing.T) {
	hash, err := sts.HashPassword("testPassword123!")
	require.NoError(t, err)

	ok, err := sts.CheckPasswordHash("wrongPassword", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = sts.CheckPasswordHash("anything", "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = sts.CheckPasswordHash("anything", "not-a-bcrypt-hash")
	assert.Error(t, err)
}
