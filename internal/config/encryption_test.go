package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowpilot/pkg/models"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Setenv("SNOWPILOT_ENCRYPTION_KEY", "test-key")

	encrypted, err := EncryptPassword("hunter2")
	require.NoError(t, err)

	assert.True(t, IsEncrypted(encrypted))
	assert.NotEqual(t, "hunter2", encrypted)
	assert.Contains(t, encrypted, "ENC[")

	decrypted, err := DecryptPassword(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", decrypted)
}

func TestEncryptEmptyPassword(t *testing.T) {
	encrypted, err := EncryptPassword("")
	require.NoError(t, err)
	assert.Empty(t, encrypted)

	decrypted, err := DecryptPassword("")
	require.NoError(t, err)
	assert.Empty(t, decrypted)
}

func TestEncryptAlreadyEncrypted(t *testing.T) {
	t.Setenv("SNOWPILOT_ENCRYPTION_KEY", "test-key")

	once, err := EncryptPassword("hunter2")
	require.NoError(t, err)

	twice, err := EncryptPassword(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestDecryptPlaintextPassthrough(t *testing.T) {
	decrypted, err := DecryptPassword("not-encrypted")
	require.NoError(t, err)
	assert.Equal(t, "not-encrypted", decrypted)
}

func TestDecryptWithWrongKey(t *testing.T) {
	t.Setenv("SNOWPILOT_ENCRYPTION_KEY", "key-one")
	encrypted, err := EncryptPassword("hunter2")
	require.NoError(t, err)

	t.Setenv("SNOWPILOT_ENCRYPTION_KEY", "key-two")
	_, err = DecryptPassword(encrypted)
	assert.Error(t, err)
}

func TestDecryptMalformedValues(t *testing.T) {
	t.Setenv("SNOWPILOT_ENCRYPTION_KEY", "test-key")

	_, err := DecryptPassword("ENC[not base64 at all!!]")
	assert.Error(t, err)

	_, err = DecryptPassword("ENC[]")
	assert.Error(t, err)
}

func TestIsEncrypted(t *testing.T) {
	assert.True(t, IsEncrypted("ENC[abc]"))
	assert.False(t, IsEncrypted("abc"))
	assert.False(t, IsEncrypted("ENC[abc"))
	assert.False(t, IsEncrypted(""))
}

func TestEncryptConfigPasswords(t *testing.T) {
	t.Setenv("SNOWPILOT_ENCRYPTION_KEY", "test-key")

	cfg := &models.Config{
		Warehouse: models.Warehouse{Password: "mainpass"},
		Environments: []models.Environment{
			{Name: "staging", Password: "stgpass"},
			{Name: "dev"},
		},
	}

	require.NoError(t, EncryptConfigPasswords(cfg))
	assert.True(t, IsEncrypted(cfg.Warehouse.Password))
	assert.True(t, IsEncrypted(cfg.Environments[0].Password))
	assert.Empty(t, cfg.Environments[1].Password)

	// Encrypting again must not double-wrap.
	first := cfg.Warehouse.Password
	require.NoError(t, EncryptConfigPasswords(cfg))
	assert.Equal(t, first, cfg.Warehouse.Password)

	require.NoError(t, DecryptConfigPasswords(cfg))
	assert.Equal(t, "mainpass", cfg.Warehouse.Password)
	assert.Equal(t, "stgpass", cfg.Environments[0].Password)
}
