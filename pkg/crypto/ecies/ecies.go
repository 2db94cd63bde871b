// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-recovery.
//
// go-recovery is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package ecies provides the Elliptic Curve Integrated Encryption Scheme used
// to protect master keys and shares for a single recipient.
//
// ECIES combines:
//  1. ECDH between a fresh ephemeral key and the recipient's static key
//  2. HKDF-SHA256 key derivation
//  3. an AEAD cipher (AES-256-GCM or ChaCha20-Poly1305)
//
// The encryption format is:
//
//	[ephemeral_public_key || nonce || ciphertext || tag]
//
// Where:
//   - ephemeral_public_key: uncompressed point, 65 bytes on both supported curves
//   - nonce: 12 bytes, random per message
//   - ciphertext || tag: AEAD output, 16-byte tag
//
// The HKDF salt is ephemeral_public_key || recipient_public_key, binding the
// derived key to both parties. Decryption failures of any kind are reported
// as ErrDecryption with no further detail.
//
// Example usage:
//
//	engine := ecies.New(keys.P256())
//	payload, _ := engine.Encrypt([]byte("share"), recipient.Public)
//	plaintext, err := engine.Decrypt(payload, recipient.Private)
package ecies

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/jeremyhahn/go-recovery/pkg/crypto/ecdh"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/jeremyhahn/go-recovery/pkg/types"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// Key size for both AEAD ciphers
	keySize = 32

	// Nonce size shared by AES-GCM and ChaCha20-Poly1305
	nonceSize = 12

	// AEAD authentication tag size
	tagSize = 16
)

// DefaultInfo is the HKDF info string used unless WithInfo overrides it.
var DefaultInfo = []byte("go-recovery/ecies/v1")

// ErrDecryption is the only error Decrypt returns.
var ErrDecryption = types.ErrDecryption

// Cipher selects the AEAD used for the payload.
type Cipher int

const (
	CipherAES256GCM Cipher = iota
	CipherChaCha20Poly1305
)

func (c Cipher) String() string {
	switch c {
	case CipherAES256GCM:
		return "aes-256-gcm"
	case CipherChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return fmt.Sprintf("cipher(%d)", int(c))
	}
}

// ParseCipher maps a configuration name to a Cipher.
func ParseCipher(name string) (Cipher, error) {
	switch strings.ToLower(name) {
	case "", "aes-256-gcm", "aes256gcm", "aes-gcm":
		return CipherAES256GCM, nil
	case "chacha20-poly1305", "chacha20poly1305", "chacha20":
		return CipherChaCha20Poly1305, nil
	default:
		return 0, fmt.Errorf("%w: unsupported cipher %q", types.ErrInvalidArgument, name)
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithRandom sets the source of randomness for ephemeral keys and nonces.
func WithRandom(r io.Reader) Option {
	return func(e *Engine) {
		if r != nil {
			e.random = r
		}
	}
}

// WithCipher selects the AEAD cipher.
func WithCipher(c Cipher) Option {
	return func(e *Engine) {
		e.cipher = c
	}
}

// WithInfo sets the HKDF info string. Sender and recipient must agree on it.
func WithInfo(info []byte) Option {
	return func(e *Engine) {
		e.info = append([]byte(nil), info...)
	}
}

// Engine encrypts to and decrypts from keys on one curve. It holds no
// mutable state and is safe for concurrent use if its random source is.
type Engine struct {
	curve  keys.Curve
	km     *keys.Manager
	random io.Reader
	cipher Cipher
	info   []byte
}

// New creates an engine for curve. Defaults are crypto/rand, AES-256-GCM and
// DefaultInfo.
func New(curve keys.Curve, opts ...Option) *Engine {
	if curve == nil {
		curve = keys.P256()
	}
	e := &Engine{
		curve:  curve,
		random: rand.Reader,
		cipher: CipherAES256GCM,
		info:   DefaultInfo,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.km = keys.NewManager(curve, e.random)
	return e
}

// Curve returns the engine's curve.
func (e *Engine) Curve() keys.Curve {
	return e.curve
}

// Cipher returns the configured AEAD.
func (e *Engine) Cipher() Cipher {
	return e.cipher
}

// Overhead is the number of bytes Encrypt adds to a plaintext.
func (e *Engine) Overhead() int {
	return e.curve.PointSize() + nonceSize + tagSize
}

// Encrypt encrypts plaintext for recipient. A nil plaintext is treated as empty.
func (e *Engine) Encrypt(plaintext []byte, recipient *keys.PublicKey) ([]byte, error) {
	return e.EncryptWithAAD(plaintext, nil, recipient)
}

// EncryptWithAAD encrypts plaintext for recipient, authenticating aad
// alongside it. The same aad must be supplied to DecryptWithAAD.
//
// The encryption process:
//  1. Generate an ephemeral key pair on the engine curve
//  2. ECDH between the ephemeral private key and the recipient key
//  3. HKDF-SHA256 over the shared secret, salted with both public keys
//  4. Seal with the configured AEAD under a random nonce
func (e *Engine) EncryptWithAAD(plaintext, aad []byte, recipient *keys.PublicKey) ([]byte, error) {
	if recipient == nil {
		return nil, fmt.Errorf("%w: recipient public key cannot be nil", types.ErrInvalidArgument)
	}
	if recipient.Curve().Name() != e.curve.Name() {
		return nil, fmt.Errorf("%w: engine uses %s, recipient uses %s",
			types.ErrCurveMismatch, e.curve.Name(), recipient.Curve().Name())
	}

	ephemeral, err := e.km.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}
	defer ephemeral.Private.Destroy()

	ephemeralPub := ephemeral.Public.Bytes()
	aead, err := e.aead(ephemeral.Private, recipient, ephemeralPub, recipient.Bytes())
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(e.random, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(ephemeralPub)+nonceSize+len(plaintext)+tagSize)
	out = append(out, ephemeralPub...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, aad), nil
}

// Decrypt reverses Encrypt. Any failure yields ErrDecryption.
func (e *Engine) Decrypt(payload []byte, recipient *keys.PrivateKey) ([]byte, error) {
	return e.DecryptWithAAD(payload, nil, recipient)
}

// DecryptWithAAD reverses EncryptWithAAD. Malformed payloads, points off
// the curve, wrong keys and tag mismatches are indistinguishable: each
// returns ErrDecryption.
func (e *Engine) DecryptWithAAD(payload, aad []byte, recipient *keys.PrivateKey) ([]byte, error) {
	if recipient == nil || recipient.Curve().Name() != e.curve.Name() {
		return nil, ErrDecryption
	}
	pointSize := e.curve.PointSize()
	if len(payload) < pointSize+nonceSize+tagSize {
		return nil, ErrDecryption
	}

	ephemeralPub := payload[:pointSize]
	nonce := payload[pointSize : pointSize+nonceSize]
	sealed := payload[pointSize+nonceSize:]

	ephemeral, err := e.km.DecodeUncompressed(ephemeralPub)
	if err != nil {
		return nil, ErrDecryption
	}

	aead, err := e.aead(recipient, ephemeral, ephemeralPub, recipient.Public().Bytes())
	if err != nil {
		return nil, ErrDecryption
	}

	plaintext, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, ErrDecryption
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// Reencrypt decrypts payload with current and encrypts the plaintext to next.
// The intermediate plaintext is zeroed before returning.
func (e *Engine) Reencrypt(payload []byte, current *keys.PrivateKey, next *keys.PublicKey) ([]byte, error) {
	plaintext, err := e.Decrypt(payload, current)
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range plaintext {
			plaintext[i] = 0
		}
	}()
	return e.Encrypt(plaintext, next)
}

func (e *Engine) aead(priv *keys.PrivateKey, peer *keys.PublicKey, ephemeralPub, recipientPub []byte) (cipher.AEAD, error) {
	shared, err := ecdh.DeriveSharedSecret(priv, peer)
	if err != nil {
		return nil, fmt.Errorf("ECDH failed: %w", err)
	}
	defer zero(shared)

	salt := make([]byte, 0, len(ephemeralPub)+len(recipientPub))
	salt = append(salt, ephemeralPub...)
	salt = append(salt, recipientPub...)

	key, err := ecdh.DeriveKey(shared, salt, e.info, keySize)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	defer zero(key)

	switch e.cipher {
	case CipherChaCha20Poly1305:
		return chacha20poly1305.New(key)
	case CipherAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}
		return cipher.NewGCM(block)
	default:
		return nil, fmt.Errorf("%w: unsupported cipher %s", types.ErrInvalidArgument, e.cipher)
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
