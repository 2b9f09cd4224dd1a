// Package privacy protects contact fields with envelope encryption and a
// deterministic lookup hash.
//
// Two keys are derived from the configured secret with HKDF-SHA256: a
// wrapping key and a hash key, each bound to the key namespace and name.
// Protect encrypts the contact under a fresh per-message data key
// (AES-256-GCM), wraps that data key under the wrapping key, and frames
// both with the encryption context in an XDR envelope. Unprotect verifies
// that every expected context pair is present before decrypting.
package privacy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
)

// Defaults for the keyring identity and encryption context.
const (
	DefaultKeyNamespace = "dirmigrate"
	DefaultKeyName      = "contact-wrapping-key"
	DefaultPurpose      = "Gov.UK Cognito -> Postgres Migration"

	// MinSecretLength is the minimum accepted secret length in bytes.
	MinSecretLength = 16

	keySize = 32
)

// DefaultContext returns the encryption context bound to every ciphertext.
func DefaultContext() map[string]string {
	return map[string]string{"purpose": DefaultPurpose}
}

// Config configures the transform.
type Config struct {
	Enabled      bool              `mapstructure:"enabled" yaml:"enabled"`
	Secret       string            `mapstructure:"secret" yaml:"secret,omitempty" json:"-"`
	KeyNamespace string            `mapstructure:"key_namespace" yaml:"key_namespace"`
	KeyName      string            `mapstructure:"key_name" yaml:"key_name"`
	Context      map[string]string `mapstructure:"context" yaml:"context"`
}

// ApplyDefaults fills in the keyring identity and context.
func (c *Config) ApplyDefaults() {
	if c.KeyNamespace == "" {
		c.KeyNamespace = DefaultKeyNamespace
	}
	if c.KeyName == "" {
		c.KeyName = DefaultKeyName
	}
	if len(c.Context) == 0 {
		c.Context = DefaultContext()
	}
}

// Validate checks the configuration when protection is enabled.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Secret == "" {
		return ErrNoSecret
	}
	if len(c.Secret) < MinSecretLength {
		return fmt.Errorf("privacy secret must be at least %d bytes", MinSecretLength)
	}
	return nil
}

// Protected is the output of Protect.
type Protected struct {
	// LookupHash is the hex BLAKE2b-256 keyed digest of the contact.
	LookupHash string

	// Ciphertext is the base64 XDR envelope.
	Ciphertext string
}

// Transformer protects and recovers contact values. It is safe for
// concurrent use.
type Transformer struct {
	key     keyID
	context map[string]string
	pairs   []contextPair
	aad     []byte // canonical context encoding
	keyAAD  []byte
	wrap    cipher.AEAD
	hashKey []byte
	random  io.Reader
}

// New derives the keys for cfg. Defaults are applied to a copy of cfg.
func New(cfg Config) (*Transformer, error) {
	cfg.ApplyDefaults()
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}

	wrapKey, err := deriveKey(cfg.Secret, "wrap:"+cfg.KeyNamespace+"/"+cfg.KeyName)
	if err != nil {
		return nil, err
	}
	hashKey, err := deriveKey(cfg.Secret, "hash:"+cfg.KeyNamespace+"/"+cfg.KeyName)
	if err != nil {
		return nil, err
	}
	wrap, err := newGCM(wrapKey)
	if err != nil {
		return nil, err
	}

	t := &Transformer{
		key:     keyID{Namespace: cfg.KeyNamespace, Name: cfg.KeyName},
		context: make(map[string]string, len(cfg.Context)),
		wrap:    wrap,
		hashKey: hashKey,
		random:  rand.Reader,
	}
	for k, v := range cfg.Context {
		t.context[k] = v
	}
	t.pairs = sortedPairs(t.context)
	if t.aad, err = encodeXDR(t.pairs); err != nil {
		return nil, fmt.Errorf("encode encryption context: %w", err)
	}
	if t.keyAAD, err = encodeXDR(&t.key); err != nil {
		return nil, fmt.Errorf("encode key id: %w", err)
	}
	return t, nil
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Context returns a copy of the expected encryption context.
func (t *Transformer) Context() map[string]string {
	out := make(map[string]string, len(t.context))
	for k, v := range t.context {
		out[k] = v
	}
	return out
}

// Hash returns the deterministic lookup hash of contact.
func (t *Transformer) Hash(contact string) string {
	h, _ := blake2b.New256(t.hashKey) // key length is always valid
	h.Write([]byte(contact))
	return hex.EncodeToString(h.Sum(nil))
}

// Protect returns the lookup hash and envelope ciphertext of contact.
func (t *Transformer) Protect(contact string) (*Protected, error) {
	dataKey := make([]byte, keySize)
	if _, err := io.ReadFull(t.random, dataKey); err != nil {
		return nil, fmt.Errorf("generate data key: %w", err)
	}
	body, err := newGCM(dataKey)
	if err != nil {
		return nil, err
	}

	env := &envelope{
		Version: envelopeVersion,
		Key:     t.key,
		Context: t.pairs,
		WrapIV:  make([]byte, t.wrap.NonceSize()),
		IV:      make([]byte, body.NonceSize()),
	}
	if _, err := io.ReadFull(t.random, env.WrapIV); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}
	if _, err := io.ReadFull(t.random, env.IV); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}
	env.WrappedKey = t.wrap.Seal(nil, env.WrapIV, dataKey, t.keyAAD)
	env.Body = body.Seal(nil, env.IV, []byte(contact), t.aad)

	raw, err := env.marshal()
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return &Protected{
		LookupHash: t.Hash(contact),
		Ciphertext: base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// Unprotect recovers the contact from a Protect ciphertext. The embedded
// context must contain every expected pair (extra pairs are allowed); this
// is checked before any decryption. Failures wrap ErrContextMismatch or
// ErrDecode.
func (t *Transformer) Unprotect(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &DecodeError{Step: "base64", Err: err}
	}
	env, err := unmarshalEnvelope(raw)
	if err != nil {
		return "", &DecodeError{Step: "envelope", Err: err}
	}
	if env.Version != envelopeVersion {
		return "", &DecodeError{Step: "version", Err: fmt.Errorf("unsupported version %d", env.Version)}
	}

	embedded, err := env.contextMap()
	if err != nil {
		return "", &DecodeError{Step: "envelope", Err: err}
	}
	for _, want := range t.pairs {
		got, ok := embedded[want.Key]
		if !ok {
			return "", &ContextMismatchError{Key: want.Key, Want: want.Value, Missing: true}
		}
		if got != want.Value {
			return "", &ContextMismatchError{Key: want.Key, Want: want.Value, Got: got}
		}
	}

	if env.Key != t.key {
		return "", &DecodeError{Step: "key", Err: fmt.Errorf("no key for %s/%s", env.Key.Namespace, env.Key.Name)}
	}
	if len(env.WrapIV) != t.wrap.NonceSize() {
		return "", &DecodeError{Step: "unwrap", Err: fmt.Errorf("bad iv length %d", len(env.WrapIV))}
	}
	dataKey, err := t.wrap.Open(nil, env.WrapIV, env.WrappedKey, t.keyAAD)
	if err != nil {
		return "", &DecodeError{Step: "unwrap", Err: err}
	}
	if len(dataKey) != keySize {
		return "", &DecodeError{Step: "unwrap", Err: fmt.Errorf("bad data key length %d", len(dataKey))}
	}

	body, err := newGCM(dataKey)
	if err != nil {
		return "", &DecodeError{Step: "decrypt", Err: err}
	}
	if len(env.IV) != body.NonceSize() {
		return "", &DecodeError{Step: "decrypt", Err: fmt.Errorf("bad iv length %d", len(env.IV))}
	}
	aad, err := encodeXDR(env.Context)
	if err != nil {
		return "", &DecodeError{Step: "decrypt", Err: err}
	}
	plain, err := body.Open(nil, env.IV, env.Body, aad)
	if err != nil {
		return "", &DecodeError{Step: "decrypt", Err: err}
	}
	return string(plain), nil
}
