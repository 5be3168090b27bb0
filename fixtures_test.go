package main

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Reference backup: salt 00..0f, password "test". Ciphertexts were produced
// with openssl enc using independently derived keys.
const (
	testSaltHex     = "000102030405060708090a0b0c0d0e0f"
	testPassword    = "test"
	testMasterKey   = "8c2f6a1d9e4b7035c1a8f2e6d4b90a71"
	testMasterKeyCT = "640c7f7f28e66da2ca5f95d738ce172b7cf9847bd1a13fa5aebeafe005899da7c5564346a7c401ca411bef6fd442023c"

	// field key derived from testMasterKey
	testFieldKeyHex = "edec64c7bd639cf1da0b5dd476acb28a"
	testFieldIVHex  = "e531db46df0ad84e8d71c0eb77d39583"

	ctPersonal     = "3080ccc338e9ab6faec833502a791be0"
	ctWork         = "a37fa7434172ec9a800185d7571657d3"
	ctDescription  = "744f6e10536af1bb854a9a0cca591987"
	ctWebsite      = "0d2c127f9e76b8bcd3ae361e3b4a4d798513d259df0cb9724f85e9ad853a8f04"
	ctUsername     = "6855c3866034f588cd830cca916dcdc0"
	ctPassword     = "375a3d37fe5efbef8bc895411c4e237a"
	ctNote         = "5531e9a036ad586ba083e42839dbbf910ca010a80c7d3b5410eed4d04327ccbfe32c99be7d0dce99f948c9f721d81ce4"
	ctUnicode      = "7b0fe160613eff4b8736bbb8950580bbce207f155d99ac6aa5217a0f058700a3"
	ctEmptyString  = "b1d3992af94626921d826962c71193c4"
	ctUniqueName   = "8f1320c24e9aef967943b2939fa61acb"
	ctPackageApp   = "36e82d05d8f4d49d4c8765b9075b8654"
	ctPackageBrows = "e383de58601b9f94d0d686bab634d1e5adb5da9e73efc1e48ebc3faf270f1a0a"

	// ctPassword with the last byte flipped; fails padding
	ctCorrupted = "375a3d37fe5efbef8bc895411c4e237b"
	// decrypts with valid padding to ff fe fd
	ctInvalidUTF8 = "fb59f28007f3232106842c477f22d97d"
	// master key record whose plaintext is c3 28
	testMasterKeyInvalidUTF8CT = "3eab2a38e79aa14f6be80ae1e858fef6"

	ptDescription = "Example Login"
	ptWebsite     = "https://example.com"
	ptUsername    = "alice"
	ptPassword    = "s3cr3t!"
	ptNote        = "Recovery codes: 1234 5678\nsecond line"
	ptUnicode     = "Überweisung € ✓"
)

func mustHex(t testing.TB, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func testFieldKey(t testing.TB) KeyMaterial {
	t.Helper()
	return KeyMaterial{Key: mustHex(t, testFieldKeyHex), IV: mustHex(t, testFieldIVHex)}
}

func strp(s string) *string { return &s }

// sealCBC pads and encrypts plaintext; the binary itself never encrypts.
func sealCBC(t testing.TB, key, iv, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	padLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := append(append([]byte{}, plaintext...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)

	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out
}

// testBackup returns the reference document with one fully populated entry.
func testBackup() *Backup {
	return &Backup{
		Version:   "1",
		Date:      "Jan 2, 2024 10:00:00 AM GMT",
		MasterKey: testMasterKeyCT,
		Salt:      testSaltHex,
		Categories: []Category{{
			Name: ctPersonal,
			Entries: []Entry{{
				RowID:       "7",
				Description: strp(ctDescription),
				Website:     strp(ctWebsite),
				Username:    strp(ctUsername),
				Password:    strp(ctPassword),
				Note:        strp(ctNote),
			}},
		}},
	}
}

type xmlEntry struct {
	rowID  string
	fields map[string]string
}

// backupXML renders a backup in the layout written by the Android app.
func backupXML(salt, masterKey string, categories map[string][]xmlEntry, order ...string) string {
	var sb strings.Builder
	sb.WriteString("<?xml version='1.0' encoding='utf-8' standalone='yes' ?>\n")
	sb.WriteString(`<OISafe version="1" date="Jan 2, 2024 10:00:00 AM GMT">` + "\n")
	if masterKey != "" {
		fmt.Fprintf(&sb, "  <MasterKey>%s</MasterKey>\n", masterKey)
	}
	if salt != "" {
		fmt.Fprintf(&sb, "  <Salt>%s</Salt>\n", salt)
	}
	for _, name := range order {
		fmt.Fprintf(&sb, "  <Category name=%q>\n", name)
		for _, e := range categories[name] {
			sb.WriteString("    <Entry>\n")
			fmt.Fprintf(&sb, "      <RowID>%s</RowID>\n", e.rowID)
			for _, f := range append(append([]string{}, EntryFields...), FieldUniqueName, FieldPackageAccess) {
				if v, ok := e.fields[f]; ok {
					fmt.Fprintf(&sb, "      <%s>%s</%s>\n", f, v, f)
				}
			}
			sb.WriteString("    </Entry>\n")
		}
		sb.WriteString("  </Category>\n")
	}
	sb.WriteString("</OISafe>\n")
	return sb.String()
}

func fullEntryFields() map[string]string {
	return map[string]string{
		FieldDescription: ctDescription,
		FieldWebsite:     ctWebsite,
		FieldUsername:    ctUsername,
		FieldPassword:    ctPassword,
		FieldNote:        ctNote,
	}
}
