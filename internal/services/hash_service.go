package services

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
)

// HashService computes the checksums recorded at capture and verified before upload
type HashService struct{}

// NewHashService creates a new HashService
func NewHashService() *HashService {
	return &HashService{}
}

// ComputeHash computes the SHA256 hash of a reader
func (s *HashService) ComputeHash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputeHashBytes computes the SHA256 hash of bytes
func (s *HashService) ComputeHashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// NormalizeHash normalizes a hash string to lowercase without a "sha256:" prefix
func (s *HashService) NormalizeHash(hash string) string {
	normalized := strings.TrimSpace(hash)
	if strings.HasPrefix(strings.ToLower(normalized), "sha256:") {
		normalized = normalized[7:]
	}
	return strings.ToLower(normalized)
}

// Matches reports whether data hashes to expected. An empty expectation always matches.
func (s *HashService) Matches(data []byte, expected string) bool {
	if strings.TrimSpace(expected) == "" {
		return true
	}
	return s.ComputeHashBytes(data) == s.NormalizeHash(expected)
}
