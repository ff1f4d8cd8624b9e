// Package auth hashes and verifies physician passwords.
//
// New hashes are bcrypt. Directory files written by earlier deployments may
// still carry werkzeug-style "pbkdf2:" or "scrypt:" hashes; those verify
// but are never produced.
package auth

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

var (
	// ErrMismatch is returned when the password does not match the hash.
	ErrMismatch = errors.New("password mismatch")

	// ErrUnsupportedHash is returned for values that are not a known hash
	// format, such as plaintext left in an unmigrated directory file.
	ErrUnsupportedHash = errors.New("unsupported password hash")
)

const defaultPBKDF2Iterations = 600000

// HashPassword returns a bcrypt hash of plain.
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// IsHashed reports whether value looks like a hash this package can verify.
func IsHashed(value string) bool {
	switch {
	case isBcrypt(value):
		return true
	case strings.HasPrefix(value, "pbkdf2:"), strings.HasPrefix(value, "scrypt:"):
		return true
	}
	return false
}

// CheckPassword verifies plain against hashed.
func CheckPassword(hashed, plain string) error {
	switch {
	case isBcrypt(hashed):
		if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return ErrMismatch
			}
			return err
		}
		return nil
	case strings.HasPrefix(hashed, "pbkdf2:"), strings.HasPrefix(hashed, "scrypt:"):
		return checkWerkzeug(hashed, plain)
	}
	return ErrUnsupportedHash
}

func isBcrypt(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

// checkWerkzeug verifies "method$salt$hexdigest".
func checkWerkzeug(hashed, plain string) error {
	parts := strings.SplitN(hashed, "$", 3)
	if len(parts) != 3 {
		return fmt.Errorf("%w: malformed werkzeug hash", ErrUnsupportedHash)
	}
	method, salt, digest := parts[0], parts[1], parts[2]

	want, err := hex.DecodeString(digest)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
	}

	got, err := deriveWerkzeug(method, []byte(plain), []byte(salt), len(want))
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrMismatch
	}
	return nil
}

func deriveWerkzeug(method string, plain, salt []byte, keyLen int) ([]byte, error) {
	fields := strings.Split(method, ":")
	switch fields[0] {
	case "pbkdf2":
		algo := "sha256"
		if len(fields) > 1 && fields[1] != "" {
			algo = fields[1]
		}
		iterations := defaultPBKDF2Iterations
		if len(fields) > 2 {
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%w: bad iteration count %q", ErrUnsupportedHash, fields[2])
			}
			iterations = n
		}
		newHash, err := hashFunc(algo)
		if err != nil {
			return nil, err
		}
		return pbkdf2.Key(plain, salt, iterations, keyLen, newHash), nil

	case "scrypt":
		n, r, p := 32768, 8, 1
		if len(fields) == 4 {
			var err error
			if n, err = strconv.Atoi(fields[1]); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
			}
			if r, err = strconv.Atoi(fields[2]); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
			}
			if p, err = strconv.Atoi(fields[3]); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
			}
		}
		return scrypt.Key(plain, salt, n, r, p, keyLen)
	}
	return nil, fmt.Errorf("%w: method %q", ErrUnsupportedHash, method)
}

func hashFunc(name string) (func() hash.Hash, error) {
	switch strings.ToLower(name) {
	case "sha1":
		return sha1.New, nil
	case "sha256":
		return sha256.New, nil
	case "sha512":
		return sha512.New, nil
	}
	return nil, fmt.Errorf("%w: digest %q", ErrUnsupportedHash, name)
}
