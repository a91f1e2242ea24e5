package wallet

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// metadata is the wallet-level document stored alongside the records.
type metadata struct {
	Version int    `json:"version"`
	KeyHash string `json:"key_hash"`
}

const metadataVersion = 1

func newMetadata(key string, cost int) ([]byte, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: key is too long", ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("hash wallet key: %w", err)
	}
	return json.Marshal(metadata{Version: metadataVersion, KeyHash: string(hashed)})
}

func verifyKey(raw []byte, key string) error {
	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return fmt.Errorf("decode wallet metadata: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(meta.KeyHash), []byte(key)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidKey
		}
		return fmt.Errorf("verify wallet key: %w", err)
	}
	return nil
}
