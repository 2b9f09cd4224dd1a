package privacy

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode indicates a ciphertext that cannot be decoded or authenticated.
	ErrDecode = errors.New("malformed ciphertext")

	// ErrContextMismatch indicates a ciphertext whose encryption context does
	// not carry the expected key/value pairs.
	ErrContextMismatch = errors.New("encryption context mismatch")

	// ErrNoSecret is returned when protection is enabled without a secret.
	ErrNoSecret = errors.New("privacy secret is required")
)

// DecodeError describes which decoding step failed.
type DecodeError struct {
	Step string // base64, envelope, version, key, unwrap, decrypt
	Err  error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrDecode, e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrDecode, e.Step)
}

// Is implements errors.Is support
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ContextMismatchError names the first expected context pair not satisfied.
type ContextMismatchError struct {
	Key     string
	Want    string
	Got     string
	Missing bool
}

// Error implements the error interface
func (e *ContextMismatchError) Error() string {
	if e.Missing {
		return fmt.Sprintf("%s: key %q missing", ErrContextMismatch, e.Key)
	}
	return fmt.Sprintf("%s: key %q is %q, want %q", ErrContextMismatch, e.Key, e.Got, e.Want)
}

// Is implements errors.Is support
func (e *ContextMismatchError) Is(target error) bool {
	return target == ErrContextMismatch
}
