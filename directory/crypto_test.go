package directory_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mailprobe/directory"
)

func TestAESRoundTrip(t *testing.T) {
	cipher, err := directory.NewAES([]byte("0123456789abcdef"))
	require.NoError(t, err)

	sealed, err := cipher.Encrypt("probe@corp.example")
	require.NoError(t, err)
	assert.NotEqual(t, "probe@corp.example", sealed)

	plain, err := cipher.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "probe@corp.example", plain)
}

func TestAESEmptyStringPassthrough(t *testing.T) {
	cipher, err := directory.NewAES([]byte("0123456789abcdef"))
	require.NoError(t, err)

	sealed, err := cipher.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	plain, err := cipher.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestAESRejectsBadKey(t *testing.T) {
	_, err := directory.NewAES([]byte("too short"))
	assert.Error(t, err)
}

func TestAESEncryptIsRandomized(t *testing.T) {
	cipher, err := directory.NewAES([]byte("0123456789abcdef"))
	require.NoError(t, err)

	first, err := cipher.Encrypt("hunter2")
	require.NoError(t, err)
	second, err := cipher.Encrypt("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestAESDecryptRejectsGarbage(t *testing.T) {
	cipher, err := directory.NewAES([]byte("0123456789abcdef"))
	require.NoError(t, err)

	_, err = cipher.Decrypt("not base64 at all")
	require.Error(t, err)
	var decErr *directory.DecryptError
	assert.ErrorAs(t, err, &decErr)
}

func TestAESDecryptRejectsTruncated(t *testing.T) {
	cipher, err := directory.NewAES([]byte("0123456789abcdef"))
	require.NoError(t, err)

	short := base64.URLEncoding.EncodeToString([]byte("ab"))
	_, err = cipher.Decrypt(short)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ciphertext too short")
}

func TestAESWrongKeyFails(t *testing.T) {
	sealer, err := directory.NewAES([]byte("0123456789abcdef"))
	require.NoError(t, err)
	opener, err := directory.NewAES([]byte("fedcba9876543210"))
	require.NoError(t, err)

	sealed, err := sealer.Encrypt("hunter2")
	require.NoError(t, err)

	_, err = opener.Decrypt(sealed)
	require.Error(t, err)
	var decErr *directory.DecryptError
	assert.ErrorAs(t, err, &decErr)
}

func TestPlaintextPassesThrough(t *testing.T) {
	got, err := directory.Plaintext{}.Decrypt("not sealed at all")
	require.NoError(t, err)
	assert.Equal(t, "not sealed at all", got)
}
