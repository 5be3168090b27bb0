package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs a fresh root command and captures both streams.
func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := newRootCmd(newViper())
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err = root.Execute()
	return out.String(), errOut.String(), err
}

func writeBackupFile(t *testing.T) string {
	t.Helper()
	doc := backupXML(testSaltHex, testMasterKeyCT, map[string][]xmlEntry{
		ctPersonal: {{rowID: "1", fields: fullEntryFields()}},
		ctWork: {
			{rowID: "2", fields: map[string]string{FieldDescription: ctDescription, FieldPassword: ctCorrupted}},
		},
	}, ctPersonal, ctWork)

	path := filepath.Join(t.TempDir(), "oisafe.xml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestDecryptCmd_CSV(t *testing.T) {
	t.Setenv(PasswordEnvVar, testPassword)
	path := writeBackupFile(t)

	stdout, stderr, err := executeCommand(t, "decrypt", path, "-o", "csv")
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewBufferString(stdout)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, RecordColumns, records[0])
	assert.Equal(t, []string{"Personal", ptDescription, ptWebsite, ptUsername, ptPassword, ptNote}, records[1])
	assert.Equal(t, []string{"Work", ptDescription, "", "", DefaultFieldPlaceholder, ""}, records[2])

	assert.Contains(t, stderr, "Successfully decrypted 2 entries (1 fields could not be decrypted)")
	assert.NotContains(t, stderr, ptPassword)
}

func TestDecryptCmd_JSONParallel(t *testing.T) {
	t.Setenv(PasswordEnvVar, testPassword)
	path := writeBackupFile(t)

	stdout, _, err := executeCommand(t, "decrypt", path, "--output", "json", "--workers", "4")
	require.NoError(t, err)

	var entries []DecryptedEntry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].RowID)
	assert.Equal(t, "2", entries[1].RowID)
	assert.Equal(t, ptNote, entries[0].Note)
}

func TestDecryptCmd_OutFile(t *testing.T) {
	t.Setenv(PasswordEnvVar, testPassword)
	path := writeBackupFile(t)
	outPath := filepath.Join(t.TempDir(), "plain.yaml")

	stdout, _, err := executeCommand(t, "decrypt", path, "-o", "yaml", "--out", outPath)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "username: "+ptUsername)

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestDecryptCmd_WrongPassword(t *testing.T) {
	t.Setenv(PasswordEnvVar, "not the password")
	path := writeBackupFile(t)

	stdout, _, err := executeCommand(t, "decrypt", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMasterKeyDecryption)
	assert.Equal(t, "decryption failed: incorrect password or corrupted data", err.Error())
	assert.Empty(t, stdout)
}

func TestDecryptCmd_Errors(t *testing.T) {
	t.Setenv(PasswordEnvVar, testPassword)

	malformed := filepath.Join(t.TempDir(), "broken.xml")
	require.NoError(t, os.WriteFile(malformed, []byte(backupXML("", testMasterKeyCT, nil)), 0o600))

	_, _, err := executeCommand(t, "decrypt", malformed)
	assert.ErrorIs(t, err, ErrMissingField)

	_, _, err = executeCommand(t, "decrypt", writeBackupFile(t), "-o", "xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, _, err = executeCommand(t, "decrypt", writeBackupFile(t), "--kdf-hash", "whirlpool")
	assert.ErrorIs(t, err, ErrUnsupportedHash)

	_, _, err = executeCommand(t, "decrypt", filepath.Join(t.TempDir(), "missing.xml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = executeCommand(t, "decrypt")
	assert.Error(t, err)
}

func TestInspectCmd(t *testing.T) {
	stdout, _, err := executeCommand(t, "inspect", writeBackupFile(t))
	require.NoError(t, err)

	assert.Contains(t, stdout, "Version:    1\n")
	assert.Contains(t, stdout, "Date:       Jan 2, 2024 10:00:00 AM GMT\n")
	assert.Contains(t, stdout, "Categories: 2\n")
	assert.Contains(t, stdout, "Entries:    2\n")
}

func TestVersionCmd(t *testing.T) {
	stdout, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "oisafe-decrypt version "+Version+"\n", stdout)
}
