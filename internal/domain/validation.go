package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors
var (
	ErrMetadataTooLarge      = fmt.Errorf("%w: metadata size exceeds limit", ErrValidation)
	ErrInvalidIdempotencyKey = fmt.Errorf("%w: invalid idempotency key", ErrValidation)
	ErrInvalidIDFormat       = errors.New("invalid ID format")
)

// Validation constants
const (
	MaxAccountNameLength    = 255
	MaxAssetCodeLength      = 32
	MaxMetadataSize         = 10240 // 10KB
	MaxIdempotencyKeyLength = 255
	MaxDescriptionLength    = 1024
)

// ValidateAccountName validates account name
func ValidateAccountName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Errorf("%w: name cannot be blank", ErrInvalidAccountName)
	}

	if len(name) > MaxAccountNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidAccountName, MaxAccountNameLength)
	}

	return nil
}

// ValidateAssetCode validates an asset code. Any non-blank code is accepted:
// the ledger is multi-asset and does not restrict itself to ISO 4217.
func ValidateAssetCode(code string) error {
	code = strings.TrimSpace(code)

	if code == "" {
		return ErrInvalidAsset
	}

	if len(code) > MaxAssetCodeLength {
		return fmt.Errorf("%w: code exceeds %d characters", ErrInvalidAsset, MaxAssetCodeLength)
	}

	return nil
}

// ValidateMetadata validates metadata size
func ValidateMetadata(metadata map[string]string) error {
	size := 0
	for k, v := range metadata {
		size += len(k) + len(v)
	}

	if size > MaxMetadataSize {
		return fmt.Errorf("%w: metadata size %d bytes exceeds limit of %d bytes", ErrMetadataTooLarge, size, MaxMetadataSize)
	}

	return nil
}

// ValidateIdempotencyKey validates a caller supplied idempotency key.
func ValidateIdempotencyKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: key cannot be blank", ErrInvalidIdempotencyKey)
	}

	if len(key) > MaxIdempotencyKeyLength {
		return fmt.Errorf("%w: key exceeds %d characters", ErrInvalidIdempotencyKey, MaxIdempotencyKeyLength)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
