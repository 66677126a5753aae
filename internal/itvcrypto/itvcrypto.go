// Package itvcrypto implements the ITv2 encryption handler (C2): AES-128-ECB
// key establishment (Type 1 / Type 2) and transparent bulk encryption of
// framed payloads once a session's keys are activated.
//
// The handler's WriteMessage/ReadMessage-shaped two-phase activation mirrors
// a Noise handshake wrapper's construct-then-activate shape, but the actual
// cryptography is AES-ECB per the protocol, not a Noise pattern: Noise has
// no ECB mode and doesn't speak this handshake.
package itvcrypto

import (
	"crypto/aes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// EncryptionType selects the handshake variant, carried in the first
// message's EncryptionType field.
type EncryptionType uint8

const (
	// TypeNone passes plaintext through unmodified; used before the
	// handler has been configured and never re-enters once Type 1/2 is active.
	TypeNone EncryptionType = 0
	// Type1 derives keys from an 8-digit access code and 8-digit
	// integration identifier via a check-byte exchange.
	Type1 EncryptionType = 1
	// Type2 derives keys from a 32-hex-digit access code via a direct
	// initializer exchange.
	Type2 EncryptionType = 2
)

const blockSize = aes.BlockSize // 16

var (
	// ErrCryptoCheck is returned when a Type 1 initializer's check bytes do
	// not match; this is fatal to the session.
	ErrCryptoCheck = errors.New("itvcrypto: check-byte mismatch")
	// ErrAlreadyActivated is returned on a second activation attempt for a
	// direction; activation is one-shot.
	ErrAlreadyActivated = errors.New("itvcrypto: direction already activated")
	// ErrNotActivated is returned when bulk en/decrypt is attempted before
	// the corresponding direction has been configured.
	ErrNotActivated = errors.New("itvcrypto: direction not configured")
	// ErrBadInitializerLength is returned when a handshake initializer has
	// the wrong length for its type.
	ErrBadInitializerLength = errors.New("itvcrypto: bad initializer length")
	// ErrBadKeyLength is returned when a configured key string doesn't
	// decode to 16 bytes.
	ErrBadKeyLength = errors.New("itvcrypto: key must be 16 bytes")
)

// Handler owns the inbound/outbound AES-ECB keys for one session direction
// pair. It is never shared between sessions, mirroring a per-connection
// *Noise ownership model.
type Handler struct {
	typ EncryptionType

	// Type 1 configuration.
	accessCodeKey  []byte // derived from the 8-digit access code
	identifierKey  []byte // derived from the 8-digit integration identifier
	// Type 2 configuration.
	type2Key []byte // derived from the 32-hex-digit access code

	inboundKey  []byte
	outboundKey []byte
	inboundSet  bool
	outboundSet bool
}

// NewType1Handler builds a handler for the Type 1 handshake from an 8-digit
// access code and an 8-digit integration identifier (a distinct configured
// value from the 12-digit session id carried in the packet header).
func NewType1Handler(accessCode8 string, integrationID8 string) (*Handler, error) {
	accessKey, err := deriveQuadrupleKey(accessCode8)
	if err != nil {
		return nil, fmt.Errorf("access code key: %w", err)
	}
	idKey, err := deriveQuadrupleKey(integrationID8)
	if err != nil {
		return nil, fmt.Errorf("identifier key: %w", err)
	}
	return &Handler{typ: Type1, accessCodeKey: accessKey, identifierKey: idKey}, nil
}

// deriveQuadrupleKey stringifies an 8-character digit string four times to
// yield a 32-hex-digit string, interpreted as a 16-byte key.
func deriveQuadrupleKey(digits8 string) ([]byte, error) {
	if len(digits8) != 8 {
		return nil, fmt.Errorf("%w: need 8 digits, got %d", ErrBadKeyLength, len(digits8))
	}
	hexStr := digits8 + digits8 + digits8 + digits8
	key, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKeyLength, err)
	}
	if len(key) != blockSize {
		return nil, ErrBadKeyLength
	}
	return key, nil
}

// NewType2Handler builds a handler for the Type 2 handshake from a
// 32-hex-digit access code.
func NewType2Handler(accessCode32Hex string) (*Handler, error) {
	key, err := hex.DecodeString(accessCode32Hex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKeyLength, err)
	}
	if len(key) != blockSize {
		return nil, ErrBadKeyLength
	}
	return &Handler{typ: Type2, type2Key: key}, nil
}

func ecbEncrypt(key, plaintext []byte) ([]byte, error) {
	if len(plaintext)%blockSize != 0 {
		return nil, fmt.Errorf("itvcrypto: plaintext length %d not block-aligned", len(plaintext))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(plaintext))
	for off := 0; off < len(plaintext); off += blockSize {
		block.Encrypt(out[off:off+blockSize], plaintext[off:off+blockSize])
	}
	return out, nil
}

func ecbDecrypt(key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext)%blockSize != 0 {
		return nil, fmt.Errorf("itvcrypto: ciphertext length %d not block-aligned", len(ciphertext))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ciphertext))
	for off := 0; off < len(ciphertext); off += blockSize {
		block.Decrypt(out[off:off+blockSize], ciphertext[off:off+blockSize])
	}
	return out, nil
}

// deinterleave splits a 2N-byte slice into the even-indexed and odd-indexed
// N-byte halves.
func deinterleave(data []byte) (even, odd []byte) {
	n := len(data) / 2
	even = make([]byte, n)
	odd = make([]byte, n)
	for i := 0; i < n; i++ {
		even[i] = data[2*i]
		odd[i] = data[2*i+1]
	}
	return even, odd
}

// interleave is the inverse of deinterleave: it zips even and odd byte
// slices of equal length back into one 2N-byte slice.
func interleave(even, odd []byte) []byte {
	out := make([]byte, len(even)+len(odd))
	for i := range even {
		out[2*i] = even[i]
		out[2*i+1] = odd[i]
	}
	return out
}

// ConfigureOutboundEncryption processes a peer-sent RequestAccess
// initializer and derives the outbound key. For Type 1 the initializer is
// the 48-byte {check, cipher} pair; for Type 2 it's the 16-byte peer
// initializer.
func (h *Handler) ConfigureOutboundEncryption(initializer []byte) error {
	if h.outboundSet {
		return ErrAlreadyActivated
	}

	switch h.typ {
	case Type1:
		if len(initializer) != 48 {
			return fmt.Errorf("%w: type 1 wants 48 bytes, got %d", ErrBadInitializerLength, len(initializer))
		}
		check := initializer[:16]
		cipherBytes := initializer[16:48]

		plaintext, err := ecbDecrypt(h.identifierKey, cipherBytes)
		if err != nil {
			return err
		}
		evenCheck, oddKey := deinterleave(plaintext)
		if !constantTimeEqual(evenCheck, check) {
			return ErrCryptoCheck
		}
		h.outboundKey = oddKey
	case Type2:
		if len(initializer) != blockSize {
			return fmt.Errorf("%w: type 2 wants %d bytes, got %d", ErrBadInitializerLength, blockSize, len(initializer))
		}
		key, err := ecbEncrypt(h.type2Key, initializer)
		if err != nil {
			return err
		}
		h.outboundKey = key
	default:
		return fmt.Errorf("itvcrypto: unsupported encryption type %d", h.typ)
	}

	h.outboundSet = true
	return nil
}

// ConfigureInboundEncryption generates our own inbound key and returns the
// initializer to send back to the peer in our RequestAccess reply.
func (h *Handler) ConfigureInboundEncryption() (initializer []byte, err error) {
	if h.inboundSet {
		return nil, ErrAlreadyActivated
	}

	switch h.typ {
	case Type1:
		random := make([]byte, 32)
		if _, err := rand.Read(random); err != nil {
			return nil, err
		}
		check, key := deinterleave(random)

		cipherBytes, err := ecbEncrypt(h.accessCodeKey, random)
		if err != nil {
			return nil, err
		}
		h.inboundKey = key
		h.inboundSet = true
		return append(append([]byte{}, check...), cipherBytes...), nil
	case Type2:
		local := make([]byte, blockSize)
		if _, err := rand.Read(local); err != nil {
			return nil, err
		}
		key, err := ecbEncrypt(h.type2Key, local)
		if err != nil {
			return nil, err
		}
		h.inboundKey = key
		h.inboundSet = true
		return local, nil
	default:
		return nil, fmt.Errorf("itvcrypto: unsupported encryption type %d", h.typ)
	}
}

// Encrypt applies zero-padded AES-ECB encryption to a packet payload (the
// encoded envelope, before the framer stuffs it) using the outbound key.
func (h *Handler) Encrypt(plaintext []byte) ([]byte, error) {
	if !h.outboundSet {
		return nil, ErrNotActivated
	}
	padded := zeroPad(plaintext)
	return ecbEncrypt(h.outboundKey, padded)
}

// Decrypt applies AES-ECB decryption using the inbound key. The zero padding
// added by the sender is not stripped: the returned plaintext keeps its
// trailing zero bytes.
func (h *Handler) Decrypt(ciphertext []byte) ([]byte, error) {
	if !h.inboundSet {
		return nil, ErrNotActivated
	}
	return ecbDecrypt(h.inboundKey, ciphertext)
}

func zeroPad(data []byte) []byte {
	rem := len(data) % blockSize
	if rem == 0 {
		return data
	}
	out := make([]byte, len(data)+(blockSize-rem))
	copy(out, data)
	return out
}

// IsConfigured reports whether both directions have completed activation.
func (h *Handler) IsConfigured() bool {
	return h.inboundSet && h.outboundSet
}

// OutboundConfigured reports whether Encrypt is callable. A session's wire
// path uses this to decide whether a packet about to be sent still goes out
// in plaintext (pre-handshake) or must be encrypted.
func (h *Handler) OutboundConfigured() bool { return h.outboundSet }

// InboundConfigured reports whether Decrypt is callable.
func (h *Handler) InboundConfigured() bool { return h.inboundSet }

// Type returns the configured handshake variant.
func (h *Handler) Type() EncryptionType {
	return h.typ
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
