package seal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	t.Parallel()

	a, err := GenerateKey()
	require.NoError(t, err)
	b, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, a, KeySize)
	assert.NotEqual(t, a, b)
}

func TestParseKey(t *testing.T) {
	t.Parallel()

	key, err := GenerateKey()
	require.NoError(t, err)
	encoded := EncodeKey(key)
	assert.Len(t, encoded, 2*KeySize)

	parsed, err := ParseKey("  " + encoded + "\n")
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	parsed, err = ParseKey(strings.ToUpper(encoded))
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = ParseKey("abcd")
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = ParseKey(strings.Repeat("zz", KeySize))
	require.ErrorIs(t, err, ErrInvalidKey)
}
