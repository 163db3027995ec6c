// Package keys signs and verifies the login challenges used for key-based
// authentication.
package keys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

const (
	AlgEd25519   = "ed25519"
	AlgSecp256k1 = "secp256k1"
)

var ErrInvalidSignature = errors.New("invalid signature")

// Signer signs challenge strings for one key pair.
type Signer interface {
	Alg() string
	PublicKey() string
	Sign(message string) (string, error)
}

type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

func GenerateEd25519() (*Ed25519Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Ed25519Signer{priv: priv}, nil
}

// Ed25519FromPrivate loads a base64 or hex encoded 64-byte private key or 32-byte seed.
func Ed25519FromPrivate(encoded string) (*Ed25519Signer, error) {
	if b, err := decodeSized(encoded, ed25519.PrivateKeySize); err == nil {
		return &Ed25519Signer{priv: ed25519.PrivateKey(b)}, nil
	}
	seed, err := decodeSized(encoded, ed25519.SeedSize)
	if err != nil {
		return nil, fmt.Errorf("ed25519 private key: %w", err)
	}
	return &Ed25519Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

func (s *Ed25519Signer) Alg() string { return AlgEd25519 }

func (s *Ed25519Signer) PublicKey() string {
	return base64.StdEncoding.EncodeToString(s.priv.Public().(ed25519.PublicKey))
}

// PrivateKey returns the base64 private key, suitable for Ed25519FromPrivate.
func (s *Ed25519Signer) PrivateKey() string {
	return base64.StdEncoding.EncodeToString(s.priv)
}

func (s *Ed25519Signer) Sign(message string) (string, error) {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(s.priv, []byte(message))), nil
}

// Secp256k1Signer signs the keccak personal-message hash of the challenge,
// the form wallet software produces.
type Secp256k1Signer struct {
	priv *secp256k1.PrivateKey
}

func GenerateSecp256k1() (*Secp256k1Signer, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &Secp256k1Signer{priv: priv}, nil
}

func Secp256k1FromHex(encoded string) (*Secp256k1Signer, error) {
	b, err := decodeHex(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(b) != 32 {
		return nil, errors.New("invalid secp256k1 private key length")
	}
	return &Secp256k1Signer{priv: secp256k1.PrivKeyFromBytes(b)}, nil
}

func (s *Secp256k1Signer) Alg() string { return AlgSecp256k1 }

func (s *Secp256k1Signer) PublicKey() string {
	return hex.EncodeToString(s.priv.PubKey().SerializeCompressed())
}

func (s *Secp256k1Signer) PrivateKey() string {
	return hex.EncodeToString(s.priv.Serialize())
}

// Sign returns hex(r || s).
func (s *Secp256k1Signer) Sign(message string) (string, error) {
	compact := secpecdsa.SignCompact(s.priv, PersonalHash([]byte(message)), true)
	return hex.EncodeToString(compact[1:]), nil
}

// Verify checks signature over message for the given algorithm and public key.
func Verify(alg, publicKey, message, signature string) error {
	switch strings.ToLower(alg) {
	case AlgEd25519:
		pub, sig, err := decodeEd25519(publicKey, signature)
		if err != nil {
			return err
		}
		if !ed25519.Verify(pub, []byte(message), sig) {
			return fmt.Errorf("ed25519: %w", ErrInvalidSignature)
		}
		return nil
	case AlgSecp256k1:
		pubBytes, err := decodeHex(publicKey)
		if err != nil {
			return err
		}
		sigBytes, err := decodeHex(signature)
		if err != nil {
			return err
		}
		pub, err := secp256k1.ParsePubKey(pubBytes)
		if err != nil {
			return err
		}
		if len(sigBytes) < 64 {
			return errors.New("invalid secp256k1 signature length")
		}
		r := new(big.Int).SetBytes(sigBytes[:32])
		s := new(big.Int).SetBytes(sigBytes[32:64])
		if !ecdsa.Verify(pub.ToECDSA(), PersonalHash([]byte(message)), r, s) {
			return fmt.Errorf("secp256k1: %w", ErrInvalidSignature)
		}
		return nil
	default:
		return fmt.Errorf("unsupported alg: %s", alg)
	}
}

// NormalizePublicKey re-encodes a public key in its canonical form so the same
// key always maps to the same account.
func NormalizePublicKey(alg, publicKey string) (string, error) {
	switch strings.ToLower(alg) {
	case AlgEd25519:
		b, err := decodeSized(publicKey, ed25519.PublicKeySize)
		if err != nil {
			return "", fmt.Errorf("ed25519 public key: %w", err)
		}
		return base64.StdEncoding.EncodeToString(b), nil
	case AlgSecp256k1:
		b, err := decodeHex(publicKey)
		if err != nil {
			return "", err
		}
		pub, err := secp256k1.ParsePubKey(b)
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(pub.SerializeCompressed()), nil
	default:
		return "", fmt.Errorf("unsupported alg: %s", alg)
	}
}

// PersonalHash is keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg).
func PersonalHash(msg []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(prefix))
	h.Write(msg)
	return h.Sum(nil)
}

func decodeEd25519(pub, sig string) (ed25519.PublicKey, []byte, error) {
	pubBytes, err := decodeSized(pub, ed25519.PublicKeySize)
	if err != nil {
		return nil, nil, fmt.Errorf("ed25519 public key: %w", err)
	}
	sigBytes, err := decodeSized(sig, ed25519.SignatureSize)
	if err != nil {
		return nil, nil, fmt.Errorf("ed25519 signature: %w", err)
	}
	return ed25519.PublicKey(pubBytes), sigBytes, nil
}

// decodeSized accepts base64 (padded or raw) or hex and returns the first
// decoding of the expected length. Hex strings are often valid base64 too.
func decodeSized(input string, size int) ([]byte, error) {
	decoders := []func(string) ([]byte, error){
		base64.StdEncoding.DecodeString,
		base64.RawStdEncoding.DecodeString,
		decodeHex,
	}
	for _, decode := range decoders {
		if b, err := decode(input); err == nil && len(b) == size {
			return b, nil
		}
	}
	return nil, fmt.Errorf("expected %d bytes of base64 or hex", size)
}

func decodeHex(input string) ([]byte, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(input), "0x")
	return hex.DecodeString(clean)
}
