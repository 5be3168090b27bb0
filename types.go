package main

import "encoding/xml"

// Field names of an entry, in display and export order.
const (
	FieldCategory    = "Category"
	FieldDescription = "Description"
	FieldWebsite     = "Website"
	FieldUsername    = "Username"
	FieldPassword    = "Password"
	FieldNote        = "Note"

	FieldUniqueName    = "UniqueName"
	FieldPackageAccess = "PackageAccess"
)

// EntryFields are the five encrypted text fields of every entry.
var EntryFields = []string{FieldDescription, FieldWebsite, FieldUsername, FieldPassword, FieldNote}

// RecordColumns is the key-value contract handed to output writers.
var RecordColumns = []string{FieldCategory, FieldDescription, FieldWebsite, FieldUsername, FieldPassword, FieldNote}

// Backup is an OI Safe XML backup as written by the Android app.
type Backup struct {
	XMLName    xml.Name   `xml:"OISafe"`
	Version    string     `xml:"version,attr"`
	Date       string     `xml:"date,attr"`
	MasterKey  string     `xml:"MasterKey"`
	Salt       string     `xml:"Salt"`
	Categories []Category `xml:"Category"`
}

// Category holds the encrypted category name and its entries.
type Category struct {
	Name    string  `xml:"name,attr"`
	Entries []Entry `xml:"Entry"`
}

// Entry is one stored credential. Nil fields were absent from the backup.
type Entry struct {
	RowID         string  `xml:"RowID"`
	Description   *string `xml:"Description"`
	Website       *string `xml:"Website"`
	Username      *string `xml:"Username"`
	Password      *string `xml:"Password"`
	Note          *string `xml:"Note"`
	UniqueName    *string `xml:"UniqueName"`
	PackageAccess *string `xml:"PackageAccess"`
}

// DecryptedEntry is the plaintext form of an Entry. All five fields are always
// set: empty when absent from the backup, a placeholder when decryption failed.
type DecryptedEntry struct {
	Category      string   `json:"category" yaml:"category"`
	Description   string   `json:"description" yaml:"description"`
	Website       string   `json:"website" yaml:"website"`
	Username      string   `json:"username" yaml:"username"`
	Password      string   `json:"password" yaml:"password"`
	Note          string   `json:"note" yaml:"note"`
	RowID         string   `json:"rowId,omitempty" yaml:"rowId,omitempty"`
	UniqueName    string   `json:"uniqueName,omitempty" yaml:"uniqueName,omitempty"`
	PackageAccess []string `json:"packageAccess,omitempty" yaml:"packageAccess,omitempty"`
}

// RestoreResult is the output of a decryption run.
type RestoreResult struct {
	Version  int
	Date     string
	Entries  []DecryptedEntry
	Failures []*FieldError
}
