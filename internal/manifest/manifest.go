// Package manifest encodes a bundle as a self-checking JSON document. The
// object store keeps one manifest per bundle and the Redis cache stores the
// same bytes.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maneesh/mediadrop/internal/models"
)

var (
	ErrChecksumMismatch = errors.New("manifest checksum mismatch")
	ErrEmptyManifest    = errors.New("manifest has no attachments")
)

// Manifest is the stored form of a bundle
type Manifest struct {
	Token       string              `json:"token"`
	Attachments []models.Attachment `json:"attachments"`
	Checksum    string              `json:"checksum"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Encode serializes a bundle and stamps the checksum of its attachment list.
func Encode(token string, attachments []models.Attachment, createdAt time.Time) ([]byte, error) {
	if len(attachments) == 0 {
		return nil, ErrEmptyManifest
	}

	sum, err := attachmentsHash(attachments)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(Manifest{
		Token:       token,
		Attachments: attachments,
		Checksum:    sum,
		CreatedAt:   createdAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return data, nil
}

// Decode parses data and verifies the attachment checksum.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	if len(m.Attachments) == 0 {
		return nil, ErrEmptyManifest
	}

	sum, err := attachmentsHash(m.Attachments)
	if err != nil {
		return nil, err
	}
	if !VerifyHash(sum, m.Checksum) {
		return nil, fmt.Errorf("%w for bundle %s", ErrChecksumMismatch, m.Token)
	}
	return &m, nil
}

// ComputeHash computes SHA256 hash of data
func ComputeHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// VerifyHash compares a computed hash with the stored one.
func VerifyHash(actual, expected string) bool {
	return expected != "" && actual == expected
}

func attachmentsHash(attachments []models.Attachment) (string, error) {
	data, err := json.Marshal(attachments)
	if err != nil {
		return "", fmt.Errorf("failed to marshal attachments: %w", err)
	}
	return ComputeHash(data), nil
}
