package main

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentMalformed is returned when the backup cannot be read as an
	// OI Safe document. Reported before any cryptographic work.
	ErrDocumentMalformed = errors.New("invalid document")

	// ErrMissingField is wrapped by ErrDocumentMalformed when the salt or the
	// master key is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrMasterKeyDecryption is returned when the master key record cannot be
	// decrypted. A wrong password and corrupted ciphertext are not told apart.
	ErrMasterKeyDecryption = errors.New("incorrect password or corrupted data")

	// ErrFieldDecryption marks a single field that failed to decrypt.
	ErrFieldDecryption = errors.New("field decryption failed")

	ErrInvalidPadding    = errors.New("invalid padding")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrInvalidKDFParams  = errors.New("invalid key derivation parameters")
	ErrUnsupportedHash   = errors.New("unsupported hash")
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// FieldError records which field of which entry failed to decrypt.
// Entry is -1 for a category name.
type FieldError struct {
	Category int
	Entry    int
	Field    string
	Err      error
}

func (e *FieldError) Error() string {
	if e.Entry < 0 {
		return fmt.Sprintf("category %d: %s: %v", e.Category, e.Field, e.Err)
	}
	return fmt.Sprintf("category %d entry %d: %s: %v", e.Category, e.Entry, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }
