package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Keyring service name
	keyringService = "snowpilot"
	// Salt for key derivation
	saltSize = 32
	// Number of iterations for PBKDF2
	pbkdf2Iterations = 100000
	// Key size for AES-256
	keySize = 32
)

// CredentialManager stores warehouse passwords in the system keyring, or in
// AES-encrypted files under ~/.snowpilot/credentials when no keyring is
// available.
type CredentialManager struct {
	useKeyring bool
	masterKey  []byte
}

// Credential represents a stored credential
type Credential struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Value     string            `json:"value"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Encrypted bool              `json:"encrypted"`
}

// CredentialKey builds the conventional name for a warehouse credential.
func CredentialKey(driver, target, username string) string {
	return fmt.Sprintf("warehouse:%s:%s:%s", driver, target, username)
}

// NewCredentialManager creates a new credential manager
func NewCredentialManager() (*CredentialManager, error) {
	cm := &CredentialManager{
		useKeyring: isKeyringAvailable(),
	}

	if !cm.useKeyring {
		key, err := cm.getMasterKey()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize master key: %w", err)
		}
		cm.masterKey = key
	}

	return cm, nil
}

// StoreCredential securely stores a credential
func (cm *CredentialManager) StoreCredential(name, credType, value string, metadata map[string]string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if cm.useKeyring {
		return cm.storeInKeyring(name, credType, value, metadata)
	}
	return cm.storeEncrypted(name, credType, value, metadata)
}

// GetCredential retrieves a stored credential
func (cm *CredentialManager) GetCredential(name string) (*Credential, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if cm.useKeyring {
		return cm.getFromKeyring(name)
	}
	return cm.getEncrypted(name)
}

// DeleteCredential removes a stored credential
func (cm *CredentialManager) DeleteCredential(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if cm.useKeyring {
		if err := keyring.Delete(keyringService, name); err != nil {
			return err
		}
		return cm.updateCredentialIndex(name, false)
	}
	return cm.deleteEncrypted(name)
}

// ListCredentials returns a list of stored credential names
func (cm *CredentialManager) ListCredentials() ([]string, error) {
	if cm.useKeyring {
		// Keyring doesn't support listing, so we maintain a separate index
		return cm.getCredentialIndex()
	}
	return cm.listEncrypted()
}

// Keyring storage methods

func (cm *CredentialManager) storeInKeyring(name, credType, value string, metadata map[string]string) error {
	cred := Credential{
		Name:     name,
		Type:     credType,
		Value:    value,
		Metadata: metadata,
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	if err := keyring.Set(keyringService, name, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return cm.updateCredentialIndex(name, true)
}

func (cm *CredentialManager) getFromKeyring(name string) (*Credential, error) {
	data, err := keyring.Get(keyringService, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get from keyring: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}

	return &cred, nil
}

// Encrypted file storage methods

func (cm *CredentialManager) storeEncrypted(name, credType, value string, metadata map[string]string) error {
	encrypted, err := cm.encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	cred := Credential{
		Name:      name,
		Type:      credType,
		Value:     encrypted,
		Metadata:  metadata,
		Encrypted: true,
	}

	return cm.saveCredentialFile(name, &cred)
}

func (cm *CredentialManager) getEncrypted(name string) (*Credential, error) {
	cred, err := cm.loadCredentialFile(name)
	if err != nil {
		return nil, err
	}

	if cred.Encrypted {
		decrypted, err := cm.decrypt(cred.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt credential: %w", err)
		}
		cred.Value = decrypted
		cred.Encrypted = false
	}

	return cred, nil
}

func (cm *CredentialManager) deleteEncrypted(name string) error {
	return os.Remove(cm.getCredentialPath(name))
}

func (cm *CredentialManager) listEncrypted() ([]string, error) {
	entries, err := os.ReadDir(cm.getCredentialsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".cred") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".cred"))
		}
	}

	return names, nil
}

// Encryption methods

func (cm *CredentialManager) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(cm.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (cm *CredentialManager) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(cm.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, encryptedData := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, encryptedData, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// Helper methods

func (cm *CredentialManager) getMasterKey() ([]byte, error) {
	keyPath := cm.getMasterKeyPath()

	data, err := os.ReadFile(keyPath) // #nosec G304 - fixed location under home
	if err == nil {
		// Extract the key part (skip the salt)
		if len(data) != saltSize+keySize {
			return nil, fmt.Errorf("invalid master key file size")
		}
		return data[saltSize:], nil
	}

	// Generate new master key
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	machineID := getMachineID()
	key := pbkdf2.Key([]byte(machineID), salt, pbkdf2Iterations, keySize, sha256.New)

	keyData := append(salt, key...)
	if err := os.MkdirAll(cm.getCredentialsDir(), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyPath, keyData, 0o600); err != nil {
		return nil, err
	}

	return key, nil
}

func (cm *CredentialManager) getCredentialsDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".snowpilot", "credentials")
}

func (cm *CredentialManager) getCredentialPath(name string) string {
	return filepath.Join(cm.getCredentialsDir(), name+".cred")
}

func (cm *CredentialManager) getMasterKeyPath() string {
	return filepath.Join(cm.getCredentialsDir(), ".master")
}

func (cm *CredentialManager) saveCredentialFile(name string, cred *Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cm.getCredentialsDir(), 0o700); err != nil {
		return err
	}
	return os.WriteFile(cm.getCredentialPath(name), data, 0o600)
}

func (cm *CredentialManager) loadCredentialFile(name string) (*Credential, error) {
	data, err := os.ReadFile(cm.getCredentialPath(name)) // #nosec G304 - name is validated
	if err != nil {
		return nil, err
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, err
	}

	return &cred, nil
}

func (cm *CredentialManager) getCredentialIndex() ([]string, error) {
	data, err := os.ReadFile(cm.getIndexPath()) // #nosec G304 - fixed location under home
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var index []string
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, err
	}

	return index, nil
}

func (cm *CredentialManager) updateCredentialIndex(name string, add bool) error {
	index, err := cm.getCredentialIndex()
	if err != nil {
		return err
	}

	found := false
	newIndex := []string{}
	for _, n := range index {
		if n == name {
			found = true
			if add {
				newIndex = append(newIndex, n)
			}
		} else {
			newIndex = append(newIndex, n)
		}
	}
	if add && !found {
		newIndex = append(newIndex, name)
	}

	data, err := json.Marshal(newIndex)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cm.getCredentialsDir(), 0o700); err != nil {
		return err
	}
	return os.WriteFile(cm.getIndexPath(), data, 0o600)
}

func (cm *CredentialManager) getIndexPath() string {
	return filepath.Join(cm.getCredentialsDir(), ".index")
}

// validateName keeps credential names from escaping the credentials dir.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("credential name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid credential name %q", name)
	}
	return nil
}

// Platform-specific helpers

func isKeyringAvailable() bool {
	// Check if keyring usage is explicitly disabled
	if os.Getenv("SNOWPILOT_USE_KEYCHAIN") == "false" {
		return false
	}

	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		// Check if a supported keyring backend is available
		if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
			return true
		}
	}
	return false
}

func getMachineID() string {
	hostname, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}

	data := fmt.Sprintf("%s-%s-%s-%s", hostname, user, runtime.GOOS, runtime.GOARCH)
	hash := sha256.Sum256([]byte(data))
	return base64.StdEncoding.EncodeToString(hash[:])
}
