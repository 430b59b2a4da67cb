package secrets

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"github.com/eskildsen/stevedore/internal/config"
	"github.com/eskildsen/stevedore/internal/constants"
	"github.com/eskildsen/stevedore/internal/db"
)

// LocalStore keeps age-encrypted values in the stevedore database. The
// identity comes from the STEVEDORE_ENCRYPTION_KEY environment variable.
type LocalStore struct {
	db       *db.DB
	identity *age.X25519Identity
}

func NewLocalStore(database *db.DB) (*LocalStore, error) {
	identity, err := ageIdentityFromEnv()
	if err != nil {
		return nil, err
	}
	return &LocalStore{db: database, identity: identity}, nil
}

func ageIdentityFromEnv() (*age.X25519Identity, error) {
	identityStr := os.Getenv(constants.EnvVarAgeIdentity)
	if identityStr == "" {
		return nil, fmt.Errorf("environment variable %s is not set", constants.EnvVarAgeIdentity)
	}
	identity, err := age.ParseX25519Identity(identityStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse age identity from %s: %w", constants.EnvVarAgeIdentity, err)
	}
	return identity, nil
}

func (s *LocalStore) Set(ctx context.Context, name, value string) error {
	encrypted, err := encrypt(value, s.identity.Recipient())
	if err != nil {
		return err
	}
	return s.db.SetSecret(name, encrypted)
}

func (s *LocalStore) Get(ctx context.Context, name string) (string, error) {
	secret, err := s.db.GetSecret(name)
	if err != nil {
		return "", err
	}
	return decrypt(secret.Value, s.identity)
}

func (s *LocalStore) List(ctx context.Context) ([]Info, error) {
	stored, err := s.db.ListSecrets()
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(stored))
	for _, secret := range stored {
		infos = append(infos, Info{
			Name:      secret.Name,
			Provider:  config.SecretProviderLocal,
			UpdatedAt: secret.UpdatedAt,
		})
	}
	return infos, nil
}

func (s *LocalStore) Delete(ctx context.Context, name string) error {
	return s.db.DeleteSecret(name)
}

// encrypt returns the base64-encoded age ciphertext of value.
func encrypt(value string, recipient age.Recipient) (string, error) {
	var rawBuffer bytes.Buffer
	encryptWriter, err := age.Encrypt(&rawBuffer, recipient)
	if err != nil {
		return "", fmt.Errorf("failed to initialize encryptor: %w", err)
	}
	if _, err = io.WriteString(encryptWriter, value); err != nil {
		return "", fmt.Errorf("failed to write value to encryption writer: %w", err)
	}
	if err := encryptWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to close encryption writer: %w", err)
	}
	return base64.StdEncoding.EncodeToString(rawBuffer.Bytes()), nil
}

func decrypt(encoded string, identity age.Identity) (string, error) {
	encryptedBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 secret: %w", err)
	}
	decryptReader, err := age.Decrypt(bytes.NewReader(encryptedBytes), identity)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}
	var decryptedBuf bytes.Buffer
	if _, err := io.Copy(&decryptedBuf, decryptReader); err != nil {
		return "", fmt.Errorf("failed to read decrypted value: %w", err)
	}
	return decryptedBuf.String(), nil
}
