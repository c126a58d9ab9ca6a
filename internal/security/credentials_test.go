package security

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialManager(t *testing.T) {
	tempDir := t.TempDir()
	os.Setenv("HOME", tempDir)
	defer os.Unsetenv("HOME")

	// Force use of encrypted file storage for testing
	originalKeyring := os.Getenv("SNOWPILOT_USE_KEYCHAIN")
	os.Setenv("SNOWPILOT_USE_KEYCHAIN", "false")
	defer func() {
		if originalKeyring != "" {
			os.Setenv("SNOWPILOT_USE_KEYCHAIN", originalKeyring)
		} else {
			os.Unsetenv("SNOWPILOT_USE_KEYCHAIN")
		}
	}()

	t.Run("Create credential manager", func(t *testing.T) {
		cm, err := NewCredentialManager()
		require.NoError(t, err)
		assert.NotNil(t, cm)
		assert.False(t, cm.useKeyring)
		assert.NotNil(t, cm.masterKey)
	})

	t.Run("Store and retrieve credential", func(t *testing.T) {
		cm, err := NewCredentialManager()
		require.NoError(t, err)

		err = cm.StoreCredential("test-cred", "password", "secret123", map[string]string{
			"environment": "test",
		})
		require.NoError(t, err)

		cred, err := cm.GetCredential("test-cred")
		require.NoError(t, err)
		assert.Equal(t, "test-cred", cred.Name)
		assert.Equal(t, "password", cred.Type)
		assert.Equal(t, "secret123", cred.Value)
		assert.Equal(t, "test", cred.Metadata["environment"])
	})

	t.Run("Value is encrypted on disk", func(t *testing.T) {
		cm, err := NewCredentialManager()
		require.NoError(t, err)

		err = cm.StoreCredential("disk-cred", "password", "plaintext-secret", nil)
		require.NoError(t, err)

		raw, err := os.ReadFile(cm.getCredentialPath("disk-cred"))
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "plaintext-secret")
	})

	t.Run("List credentials", func(t *testing.T) {
		cm, err := NewCredentialManager()
		require.NoError(t, err)

		err = cm.StoreCredential("cred1", "password", "pass1", nil)
		require.NoError(t, err)
		err = cm.StoreCredential("cred2", "api_key", "key123", nil)
		require.NoError(t, err)

		names, err := cm.ListCredentials()
		require.NoError(t, err)
		assert.Contains(t, names, "cred1")
		assert.Contains(t, names, "cred2")
	})

	t.Run("Delete credential", func(t *testing.T) {
		cm, err := NewCredentialManager()
		require.NoError(t, err)

		err = cm.StoreCredential("temp-cred", "password", "temp123", nil)
		require.NoError(t, err)

		err = cm.DeleteCredential("temp-cred")
		require.NoError(t, err)

		_, err = cm.GetCredential("temp-cred")
		assert.Error(t, err)
	})

	t.Run("Rejects names with path separators", func(t *testing.T) {
		cm, err := NewCredentialManager()
		require.NoError(t, err)

		err = cm.StoreCredential("../escape", "password", "x", nil)
		assert.Error(t, err)

		err = cm.StoreCredential("a/b", "password", "x", nil)
		assert.Error(t, err)
	})
}

func TestCredentialKey(t *testing.T) {
	key := CredentialKey("snowflake", "xy12345", "pilot")
	assert.Equal(t, "warehouse:snowflake:xy12345:pilot", key)
}
