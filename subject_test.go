package sts_test

import (
	"testing"

	sts "github.com/goliatone/go-sts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSubjectParser(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		parse, ok := sts.DefaultSubjectParser[string]()
		require.True(t, ok)
		key, err := parse("abc")
		require.NoError(t, err)
		assert.Equal(t, "abc", key)
	})

	t.Run("int32", func(t *testing.T) {
		parse, ok := sts.DefaultSubjectParser[int32]()
		require.True(t, ok)
		key, err := parse("42")
		require.NoError(t, err)
		assert.Equal(t, int32(42), key)

		_, err = parse("99999999999")
		assert.Error(t, err)
	})

	t.Run("uint32 rejects negatives", func(t *testing.T) {
		parse, ok := sts.DefaultSubjectParser[uint32]()
		require.True(t, ok)
		_, err := parse("-1")
		assert.Error(t, err)
	})

	t.Run("int64", func(t *testing.T) {
		parse, ok := sts.DefaultSubjectParser[int64]()
		require.True(t, ok)
		key, err := parse(" 9000000000 ")
		require.NoError(t, err)
		assert.Equal(t, int64(9000000000), key)

		_, err = parse("abc")
		assert.Error(t, err)
	})

	t.Run("uuid", func(t *testing.T) {
		parse, ok := sts.DefaultSubjectParser[uuid.UUID]()
		require.True(t, ok)
		id := uuid.New()
		key, err := parse(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, key)

		_, err = parse("not-a-uuid")
		assert.Error(t, err)
	})

	t.Run("unsupported key type", func(t *testing.T) {
		_, ok := sts.DefaultSubjectParser[float64]()
		assert.False(t, ok)
	})
}

func TestLenientSubjectParser(t *testing.T) {
	parse, ok := sts.LenientSubjectParser[int64]()
	require.True(t, ok)

	key, err := parse("abc")
	require.NoError(t, err)
	assert.Zero(t, key)

	key, err = parse("7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), key)
}

func TestFormatSubject(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, id.String(), sts.FormatSubject(id))
	assert.Equal(t, "42", sts.FormatSubject(int64(42)))
	assert.Equal(t, "abc", sts.FormatSubject("abc"))
}
