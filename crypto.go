package main

import (
	"crypto/md5"
	"fmt"
	"hash"
	"math/big"
	"strings"

	"github.com/tink-crypto/tink-go/v2/subtle"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/text/encoding/unicode"
)

const (
	// Master key: PBEWithSHA1And256BitAES-CBC-BC
	MasterKeyIterations = 20
	MasterKeyLen        = 32 // AES-256
	MasterIVLen         = 16

	// Fields: PBEWithMD5And128BitAES-CBC-OpenSSL
	FieldIterations = 20
	FieldKeyLen     = 16 // AES-128
	FieldIVLen      = 16

	// PKCS#12 diversifiers (RFC 7292 appendix B.3)
	DiversifierKey byte = 1
	DiversifierIV  byte = 2
	DiversifierMAC byte = 3

	DefaultKDFHash = "SHA1"
)

// KeyMaterial is an AES key and the IV to use with it.
type KeyMaterial struct {
	Key []byte
	IV  []byte
}

// Zero overwrites the key and IV.
func (km KeyMaterial) Zero() {
	zeroBytes(km.Key)
	zeroBytes(km.IV)
}

// Hash is the hash capability handed to the PKCS#12 KDF.
type Hash struct {
	Name string
	New  func() hash.Hash
}

// Size returns the digest size u.
func (h Hash) Size() int { return h.New().Size() }

// BlockSize returns the input block size v.
func (h Hash) BlockSize() int { return h.New().BlockSize() }

func (h Hash) sum(data []byte) []byte {
	d := h.New()
	d.Write(data)
	return d.Sum(nil)
}

// LookupHash resolves a hash by name ("SHA1", "SHA256", "MD5", "RIPEMD160", ...).
func LookupHash(name string) (Hash, error) {
	name = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", ""))
	switch name {
	case "MD5":
		return Hash{Name: name, New: md5.New}, nil
	case "RIPEMD160":
		return Hash{Name: name, New: ripemd160.New}, nil
	}
	if fn := subtle.GetHashFunc(name); fn != nil {
		return Hash{Name: name, New: fn}, nil
	}
	return Hash{}, fmt.Errorf("%w: %q", ErrUnsupportedHash, name)
}

// PKCS12Key derives n bytes of key material with the PKCS#12 KDF.
func PKCS12Key(h Hash, password, salt []byte, iterations, n int, id byte) ([]byte, error) {
	if h.New == nil {
		return nil, fmt.Errorf("%w: no hash", ErrInvalidKDFParams)
	}
	if iterations < 1 {
		return nil, fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalidKDFParams, iterations)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: output length must be positive, got %d", ErrInvalidKDFParams, n)
	}
	return derivePKCS12(h, password, salt, iterations, n, id), nil
}

// derivePKCS12 implements RFC 7292 appendix B.2.
func derivePKCS12(h Hash, password, salt []byte, iterations, n int, id byte) []byte {
	u := h.Size()
	v := h.BlockSize()

	D := make([]byte, v)
	for i := range D {
		D[i] = id
	}

	S := fillWithRepeats(salt, v)
	P := fillWithRepeats(password, v)

	I := make([]byte, 0, len(S)+len(P))
	I = append(I, S...)
	I = append(I, P...)

	c := (n + u - 1) / u
	A := make([]byte, 0, c*u)

	for i := 1; i <= c; i++ {
		Ai := h.sum(append(append([]byte{}, D...), I...))
		for j := 1; j < iterations; j++ {
			Ai = h.sum(Ai)
		}
		A = append(A, Ai...)

		if i < c {
			B := repeatTo(Ai, v)
			addChunks(I, B, v)
		}
	}

	return A[:n]
}

// addChunks replaces every v-byte chunk I_j of I with (I_j + B + 1) mod 2^(8v).
func addChunks(I, B []byte, v int) {
	one := big.NewInt(1)
	b := new(big.Int).SetBytes(B)
	Ij := new(big.Int)

	for j := 0; j+v <= len(I); j += v {
		Ij.SetBytes(I[j : j+v])
		Ij.Add(Ij, b)
		Ij.Add(Ij, one)

		out := Ij.Bytes()
		if len(out) > v {
			// carry out of the top byte is dropped
			out = out[len(out)-v:]
		}
		chunk := I[j : j+v]
		for k := range chunk {
			chunk[k] = 0
		}
		copy(chunk[v-len(out):], out)
	}
}

// fillWithRepeats repeats pattern up to the smallest multiple of v that is
// not shorter than pattern. Empty pattern gives nil.
func fillWithRepeats(pattern []byte, v int) []byte {
	if len(pattern) == 0 {
		return nil
	}
	return repeatTo(pattern, v*((len(pattern)+v-1)/v))
}

func repeatTo(pattern []byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	return out
}

// deriveOpenSSL is OpenSSL's EVP_BytesToKey with MD5 and an iteration count.
func deriveOpenSSL(password, salt []byte, iterations, keyLen, ivLen int) KeyMaterial {
	var data, m []byte
	for len(data) < keyLen+ivLen {
		d := md5.New()
		d.Write(m)
		d.Write(password)
		d.Write(salt)
		m = d.Sum(nil)
		for i := 1; i < iterations; i++ {
			sum := md5.Sum(m)
			m = sum[:]
		}
		data = append(data, m...)
	}

	return KeyMaterial{
		Key: data[:keyLen:keyLen],
		IV:  data[keyLen : keyLen+ivLen : keyLen+ivLen],
	}
}

// OpenSSLKey derives a key and IV the way OpenSSL's legacy PBE does.
func OpenSSLKey(password, salt []byte, iterations, keyLen, ivLen int) (KeyMaterial, error) {
	if iterations < 1 {
		return KeyMaterial{}, fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalidKDFParams, iterations)
	}
	if keyLen < 0 || ivLen < 0 || keyLen+ivLen == 0 {
		return KeyMaterial{}, fmt.Errorf("%w: key %d iv %d", ErrInvalidKDFParams, keyLen, ivLen)
	}
	return deriveOpenSSL(password, salt, iterations, keyLen, ivLen), nil
}

// encodePKCS12Password encodes a password as UTF-16BE followed by a two byte
// zero terminator. The empty password encodes to just the terminator.
func encodePKCS12Password(password []byte) ([]byte, error) {
	enc := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
	b, err := enc.Bytes(password)
	if err != nil {
		return nil, fmt.Errorf("encode password: %w", err)
	}
	return append(b, 0, 0), nil
}

// masterKeyMaterial derives the AES-256 key and IV protecting the master key.
func masterKeyMaterial(h Hash, password, salt []byte) KeyMaterial {
	return KeyMaterial{
		Key: derivePKCS12(h, password, salt, MasterKeyIterations, MasterKeyLen, DiversifierKey),
		IV:  derivePKCS12(h, password, salt, MasterKeyIterations, MasterIVLen, DiversifierIV),
	}
}

// fieldKeyMaterial derives the AES-128 key and IV shared by every field of a
// backup.
func fieldKeyMaterial(masterKey, salt []byte) KeyMaterial {
	return deriveOpenSSL(masterKey, salt, FieldIterations, FieldKeyLen, FieldIVLen)
}
