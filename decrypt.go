package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sourcegraph/conc/iter"
)

const (
	DefaultCategoryPlaceholder = "[Encrypted]"
	DefaultFieldPlaceholder    = "[Error]"
)

// Options tunes a decryption run. The zero value decrypts sequentially with
// SHA-1 and the default placeholders.
type Options struct {
	// Hash used by the master key KDF. OI Safe always uses SHA-1.
	Hash Hash
	// Workers > 1 decrypts entries in parallel. Output order is unchanged.
	Workers             int
	CategoryPlaceholder string
	FieldPlaceholder    string
	Logger              *slog.Logger
}

// Restorer decrypts one backup. The salt and derived key material are shared
// read-only by all field decryptions.
type Restorer struct {
	backup *Backup
	salt   []byte
	opts   Options
	log    *slog.Logger
}

type entryJob struct {
	category int
	index    int
	entry    *Entry
}

type entryResult struct {
	entry    DecryptedEntry
	failures []*FieldError
}

// NewRestorer validates the document and prepares a run.
func NewRestorer(b *Backup, opts Options) (*Restorer, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	salt, err := b.SaltBytes()
	if err != nil {
		return nil, err
	}

	if opts.Hash.New == nil {
		h, err := LookupHash(DefaultKDFHash)
		if err != nil {
			return nil, err
		}
		opts.Hash = h
	}
	if opts.CategoryPlaceholder == "" {
		opts.CategoryPlaceholder = DefaultCategoryPlaceholder
	}
	if opts.FieldPlaceholder == "" {
		opts.FieldPlaceholder = DefaultFieldPlaceholder
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Restorer{backup: b, salt: salt, opts: opts, log: opts.Logger}, nil
}

// Decrypt recovers the master key with password and decrypts every entry.
func Decrypt(ctx context.Context, b *Backup, password []byte, opts Options) (*RestoreResult, error) {
	r, err := NewRestorer(b, opts)
	if err != nil {
		return nil, err
	}

	masterKey, err := r.OpenMasterKey(password)
	if err != nil {
		return nil, err
	}
	defer masterKey.Zero()

	return r.Restore(ctx, masterKey)
}

// OpenMasterKey decrypts the master key record. Every failure is reported as
// ErrMasterKeyDecryption; the cause only goes to the debug log.
func (r *Restorer) OpenMasterKey(password []byte) (Secret, error) {
	encoded, err := encodePKCS12Password(password)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(encoded)

	km := masterKeyMaterial(r.opts.Hash, encoded, r.salt)
	defer km.Zero()

	plaintext, err := decryptHex(r.backup.MasterKey, km)
	if err != nil {
		r.log.Debug("master key decryption failed", "error", err)
		return nil, ErrMasterKeyDecryption
	}

	return Secret(plaintext), nil
}

// Restore decrypts all categories and entries with the field key derived from
// masterKey. Field failures never abort the run.
func (r *Restorer) Restore(ctx context.Context, masterKey Secret) (*RestoreResult, error) {
	if !isASCII(masterKey) {
		return nil, fmt.Errorf("%w: master key is not ASCII", ErrMasterKeyDecryption)
	}

	km := fieldKeyMaterial(masterKey, r.salt)
	defer km.Zero()

	result := &RestoreResult{
		Version: r.backup.FormatVersion(),
		Date:    r.backup.Date,
	}

	labels := make([]string, len(r.backup.Categories))
	var jobs []entryJob

	for ci := range r.backup.Categories {
		cat := &r.backup.Categories[ci]

		name, err := decryptField(cat.Name, km)
		if err != nil {
			fe := &FieldError{Category: ci, Entry: -1, Field: FieldCategory, Err: err}
			r.logFailure(fe)
			result.Failures = append(result.Failures, fe)
			name = r.opts.CategoryPlaceholder
		}
		labels[ci] = name

		for ei := range cat.Entries {
			jobs = append(jobs, entryJob{category: ci, index: ei, entry: &cat.Entries[ei]})
		}
	}

	entries, err := r.decryptEntries(ctx, jobs, labels, km)
	if err != nil {
		return nil, err
	}

	result.Entries = make([]DecryptedEntry, 0, len(entries))
	for _, e := range entries {
		result.Entries = append(result.Entries, e.entry)
		result.Failures = append(result.Failures, e.failures...)
	}

	r.log.Info("backup decrypted",
		"categories", len(r.backup.Categories),
		"entries", len(result.Entries),
		"failures", len(result.Failures))

	return result, nil
}

func (r *Restorer) decryptEntries(ctx context.Context, jobs []entryJob, labels []string, km KeyMaterial) ([]entryResult, error) {
	if r.opts.Workers <= 1 {
		out := make([]entryResult, 0, len(jobs))
		for _, j := range jobs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out = append(out, r.decryptEntry(j, labels[j.category], km))
		}
		return out, nil
	}

	mapper := iter.Mapper[entryJob, entryResult]{MaxGoroutines: r.opts.Workers}
	out := mapper.Map(jobs, func(j *entryJob) entryResult {
		if ctx.Err() != nil {
			return entryResult{}
		}
		return r.decryptEntry(*j, labels[j.category], km)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Restorer) decryptEntry(j entryJob, category string, km KeyMaterial) entryResult {
	res := entryResult{
		entry: DecryptedEntry{
			Category: category,
			RowID:    strings.TrimSpace(j.entry.RowID),
		},
	}

	fail := func(field string, err error) {
		fe := &FieldError{Category: j.category, Entry: j.index, Field: field, Err: err}
		r.logFailure(fe)
		res.failures = append(res.failures, fe)
	}

	for _, name := range EntryFields {
		ciphertext, ok := j.entry.Field(name)
		if !ok {
			res.entry.set(name, "")
			continue
		}
		value, err := decryptField(ciphertext, km)
		if err != nil {
			fail(name, err)
			value = r.opts.FieldPlaceholder
		}
		res.entry.set(name, value)
	}

	if j.entry.UniqueName != nil {
		value, err := decryptField(*j.entry.UniqueName, km)
		if err != nil {
			fail(FieldUniqueName, err)
			value = r.opts.FieldPlaceholder
		}
		res.entry.UniqueName = value
	}

	for _, pkg := range j.entry.PackageAccessList() {
		value, err := decryptField(pkg, km)
		if err != nil {
			fail(FieldPackageAccess, err)
			value = r.opts.FieldPlaceholder
		}
		res.entry.PackageAccess = append(res.entry.PackageAccess, value)
	}

	return res
}

func (r *Restorer) logFailure(fe *FieldError) {
	attrs := []any{"category", fe.Category, "field", fe.Field, "error", fe.Err}
	if fe.Entry >= 0 {
		attrs = append(attrs, "entry", fe.Entry)
	}
	r.log.Warn("field decryption failed", attrs...)
}

// decryptField decrypts one hex encoded field. Empty input is an empty
// string and never reaches the cipher.
func decryptField(hexCiphertext string, km KeyMaterial) (string, error) {
	if hexCiphertext == "" {
		return "", nil
	}

	plaintext, err := decryptHex(hexCiphertext, km)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFieldDecryption, err)
	}
	return string(plaintext), nil
}

// decryptHex hex-decodes, decrypts, unpads and checks that the result is
// UTF-8.
func decryptHex(hexCiphertext string, km KeyMaterial) ([]byte, error) {
	ciphertext, err := hex.DecodeString(hexCiphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	plaintext, err := decryptCBC(km.Key, km.IV, ciphertext)
	if err != nil {
		return nil, err
	}

	if !utf8.Valid(plaintext) {
		return nil, fmt.Errorf("%w: plaintext is not UTF-8", ErrInvalidCiphertext)
	}
	return plaintext, nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
