package main

import (
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseBackup reads an OI Safe XML backup and checks that the salt and the
// encrypted master key are present.
func ParseBackup(r io.Reader) (*Backup, error) {
	var b Backup
	if err := xml.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentMalformed, err)
	}

	b.Salt = strings.TrimSpace(b.Salt)
	b.MasterKey = strings.TrimSpace(b.MasterKey)

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// ReadBackupFile opens and parses a backup file.
func ReadBackupFile(path string) (*Backup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	return ParseBackup(f)
}

// Validate reports a malformed document before any decryption is attempted.
func (b *Backup) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: no document", ErrDocumentMalformed)
	}
	if b.XMLName.Local != "" && b.XMLName.Local != "OISafe" {
		return fmt.Errorf("%w: unexpected root element %q", ErrDocumentMalformed, b.XMLName.Local)
	}
	if strings.TrimSpace(b.Salt) == "" {
		return fmt.Errorf("%w: %w: Salt", ErrDocumentMalformed, ErrMissingField)
	}
	if strings.TrimSpace(b.MasterKey) == "" {
		return fmt.Errorf("%w: %w: MasterKey", ErrDocumentMalformed, ErrMissingField)
	}
	if _, err := b.SaltBytes(); err != nil {
		return err
	}
	return nil
}

// SaltBytes decodes the global salt.
func (b *Backup) SaltBytes() ([]byte, error) {
	salt, err := hex.DecodeString(strings.TrimSpace(b.Salt))
	if err != nil {
		return nil, fmt.Errorf("%w: salt is not hex: %v", ErrDocumentMalformed, err)
	}
	return salt, nil
}

// FormatVersion returns the version attribute, or 0 when it is missing or
// not a number.
func (b *Backup) FormatVersion() int {
	v, err := strconv.Atoi(strings.TrimSpace(b.Version))
	if err != nil {
		return 0
	}
	return v
}

// EntryCount returns the number of entries across all categories.
func (b *Backup) EntryCount() int {
	n := 0
	for _, c := range b.Categories {
		n += len(c.Entries)
	}
	return n
}

// Field returns the ciphertext of a named entry field and whether the
// element was present.
func (e *Entry) Field(name string) (string, bool) {
	var p *string
	switch name {
	case FieldDescription:
		p = e.Description
	case FieldWebsite:
		p = e.Website
	case FieldUsername:
		p = e.Username
	case FieldPassword:
		p = e.Password
	case FieldNote:
		p = e.Note
	}
	if p == nil {
		return "", false
	}
	return *p, true
}

// PackageAccessList splits the "[a,b,c]" package access list.
func (e *Entry) PackageAccessList() []string {
	if e.PackageAccess == nil {
		return nil
	}
	s := strings.TrimSpace(*e.PackageAccess)
	if len(s) <= 2 {
		return nil
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")

	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// set stores a field value on a decrypted entry.
func (d *DecryptedEntry) set(name, value string) {
	switch name {
	case FieldCategory:
		d.Category = value
	case FieldDescription:
		d.Description = value
	case FieldWebsite:
		d.Website = value
	case FieldUsername:
		d.Username = value
	case FieldPassword:
		d.Password = value
	case FieldNote:
		d.Note = value
	}
}

// Record returns the entry as a field name to value map.
func (d DecryptedEntry) Record() map[string]string {
	return map[string]string{
		FieldCategory:    d.Category,
		FieldDescription: d.Description,
		FieldWebsite:     d.Website,
		FieldUsername:    d.Username,
		FieldPassword:    d.Password,
		FieldNote:        d.Note,
	}
}

// Row returns the entry values in RecordColumns order.
func (d DecryptedEntry) Row() []string {
	rec := d.Record()
	row := make([]string, len(RecordColumns))
	for i, col := range RecordColumns {
		row[i] = rec[col]
	}
	return row
}
