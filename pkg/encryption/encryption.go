// Package encryption provides encryption at rest for stored document records.
//
// Records are sealed with AES-256-GCM under a key derived from a passphrase
// with PBKDF2-HMAC-SHA256. Every sealed record starts with a 4-byte key
// version so records written under a retired key are rejected with
// ErrKeyNotFound instead of failing authentication.
//
// Sealed format:
//
//	[4 bytes big-endian key version][12 bytes nonce][ciphertext + GCM tag]
//
// Example:
//
//	enc, err := encryption.NewEncryptor("correct horse battery staple", encryption.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	sealed, _ := enc.Seal([]byte(`{"id":"doc-1"}`))
//	plain, _ := enc.Open(sealed)
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// Key version header size in sealed data.
const versionHeaderSize = 4

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// DefaultIterations is the PBKDF2 iteration count (OWASP 2023).
const DefaultIterations = 600000

// Errors
var (
	ErrInvalidKey       = errors.New("encryption: invalid key length (must be 32 bytes)")
	ErrEmptyPassword    = errors.New("encryption: empty password")
	ErrInvalidData      = errors.New("encryption: invalid encrypted data")
	ErrDecryptionFailed = errors.New("encryption: decryption failed (authentication error)")
	ErrKeyNotFound      = errors.New("encryption: key version not found")
)

// Key is a versioned AES-256 key.
type Key struct {
	ID       uint32
	Material []byte
}

// Validate checks the key material length.
func (k *Key) Validate() error {
	if len(k.Material) != KeySize {
		return ErrInvalidKey
	}
	return nil
}

// Fingerprint returns a short identifier for logs that does not reveal the key.
func (k *Key) Fingerprint() string {
	hash := sha256.Sum256(k.Material)
	return hex.EncodeToString(hash[:8])
}

// Options configures password-based key derivation.
type Options struct {
	// Salt for key derivation. Should be unique per data directory.
	Salt []byte

	// Iterations for PBKDF2 (default: 600000).
	Iterations int

	// KeyID is the version stamped on sealed records (default: 1).
	KeyID uint32
}

// DefaultOptions returns the default derivation settings.
func DefaultOptions() Options {
	return Options{
		Salt:       []byte("shelfsort-default-salt-change-me"),
		Iterations: DefaultIterations,
		KeyID:      1,
	}
}

// Encryptor seals and opens records. It is safe for concurrent use.
type Encryptor struct {
	mu      sync.RWMutex
	keys    map[uint32]*Key
	current uint32
}

// NewEncryptor derives a key from password and returns an encryptor that
// seals with it.
func NewEncryptor(password string, opts Options) (*Encryptor, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	defaults := DefaultOptions()
	if len(opts.Salt) == 0 {
		opts.Salt = defaults.Salt
	}
	if opts.KeyID == 0 {
		opts.KeyID = defaults.KeyID
	}

	e := &Encryptor{keys: make(map[uint32]*Key)}
	key := &Key{
		ID:       opts.KeyID,
		Material: DeriveKey([]byte(password), opts.Salt, opts.Iterations),
	}
	if err := e.AddKey(key, true); err != nil {
		return nil, err
	}
	return e, nil
}

// AddKey registers key for opening records. When current is true the key
// also seals new records.
func (e *Encryptor) AddKey(key *Key, current bool) error {
	if err := key.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.keys[key.ID] = key
	if current {
		e.current = key.ID
	}
	return nil
}

// RemoveKey forgets a key version. Records sealed with it can no longer be
// opened.
func (e *Encryptor) RemoveKey(id uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.keys, id)
}

// CurrentKey returns the sealing key.
func (e *Encryptor) CurrentKey() (*Key, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	key, ok := e.keys[e.current]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

// Seal encrypts plaintext with the current key.
func (e *Encryptor) Seal(plaintext []byte) ([]byte, error) {
	key, err := e.CurrentKey()
	if err != nil {
		return nil, err
	}
	return seal(plaintext, key)
}

// Open decrypts data produced by Seal.
func (e *Encryptor) Open(data []byte) ([]byte, error) {
	if len(data) < versionHeaderSize {
		return nil, ErrInvalidData
	}

	version := binary.BigEndian.Uint32(data[:versionHeaderSize])

	e.mu.RLock()
	key, ok := e.keys[version]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: v%d", ErrKeyNotFound, version)
	}

	return open(data[versionHeaderSize:], key)
}

// seal performs AES-256-GCM encryption and prepends the version header.
func seal(plaintext []byte, key *Key) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	result := make([]byte, versionHeaderSize+len(nonce), versionHeaderSize+len(nonce)+len(plaintext)+gcm.Overhead())
	binary.BigEndian.PutUint32(result[:versionHeaderSize], key.ID)
	copy(result[versionHeaderSize:], nonce)

	return gcm.Seal(result, nonce, plaintext, nil), nil
}

// open performs AES-256-GCM decryption of data without the version header.
func open(data []byte, key *Key) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize+gcm.Overhead() {
		return nil, ErrInvalidData
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key *Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key.Material)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// DeriveKey derives a 32-byte key from password and salt using
// PBKDF2-HMAC-SHA256. Zero iterations means DefaultIterations.
func DeriveKey(password, salt []byte, iterations int) []byte {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return pbkdf2.Key(password, salt, iterations, KeySize, sha256.New)
}

// GenerateSalt returns 32 random bytes for use as a derivation salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}
