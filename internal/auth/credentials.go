package auth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aura-media/gallery/pkg/utils"
)

// ErrInvalidCredential is returned when a submitted password does not match.
var ErrInvalidCredential = errors.New("invalid credential")

// CredentialStore holds the bcrypt hash of the gallery admin password.
type CredentialStore struct {
	mu   sync.RWMutex
	hash string
}

// NewCredentialStore uses hash when given, otherwise hashes password. One of them must be set.
func NewCredentialStore(hash, password string) (*CredentialStore, error) {
	if hash == "" {
		if password == "" {
			return nil, errors.New("admin password or password hash is required")
		}
		h, err := utils.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		hash = h
	}
	return &CredentialStore{hash: hash}, nil
}

// Verify reports whether password matches the stored hash.
func (s *CredentialStore) Verify(password string) bool {
	s.mu.RLock()
	hash := s.hash
	s.mu.RUnlock()
	return utils.CheckPassword(password, hash)
}

// Rotate replaces the stored hash after checking the old password.
func (s *CredentialStore) Rotate(oldPassword, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !utils.CheckPassword(oldPassword, s.hash) {
		return ErrInvalidCredential
	}
	newHash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	s.hash = newHash
	return nil
}
