package sts_test

import (
	"testing"

	goerrors "github.com/goliatone/go-errors"
	sts "github.com/goliatone/go-sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationResult(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		res := sts.Success()
		assert.True(t, res.Succeeded)
		assert.Empty(t, res.FirstError())
		assert.NoError(t, res.Err())
	})

	t.Run("failed keeps message order", func(t *testing.T) {
		res := sts.Failed(sts.MsgDuplicateUserName, " ", "second")
		assert.False(t, res.Succeeded)
		assert.Equal(t, []string{sts.MsgDuplicateUserName, "second"}, res.Errors)
		assert.Equal(t, sts.MsgDuplicateUserName, res.FirstError())
		assert.True(t, res.HasError("second"))
	})

	t.Run("failed without messages", func(t *testing.T) {
		assert.NotEmpty(t, sts.Failed().FirstError())
	})

	t.Run("err maps canonical messages to text codes", func(t *testing.T) {
		tests := map[string]string{
			sts.MsgDuplicateUserName:      sts.TextCodeDuplicateUserName,
			sts.MsgDuplicateUserID:        sts.TextCodeDuplicateUserID,
			sts.MsgDuplicateExternalLogin: sts.TextCodeDuplicateLogin,
			sts.MsgUnknownUser:            sts.TextCodeUnknownUser,
			"something else":              sts.TextCodeOperationFailed,
		}
		for msg, code := range tests {
			var richErr *goerrors.Error
			require.True(t, goerrors.As(sts.Failed(msg).Err(), &richErr), msg)
			assert.Equal(t, code, richErr.TextCode)
			assert.Equal(t, goerrors.CategoryConflict, richErr.Category)
		}
	})
}
