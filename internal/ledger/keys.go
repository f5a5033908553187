package ledger

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"golang.org/x/crypto/blake2b"
)

const (
	// ed25519Flag prefixes keys, addresses and signatures of the Ed25519 scheme.
	ed25519Flag byte = 0x00
	secretKeyHRP     = "suiprivkey"
)

// transactionIntent is the intent prefix for signing transaction data:
// scope TransactionData, version V0, app id Sui.
var transactionIntent = []byte{0, 0, 0}

var ErrInvalidSecretKey = errors.New("invalid admin secret key")

// Signer holds the admin Ed25519 key used to authorize settlement transactions.
type Signer struct {
	key     ed25519.PrivateKey
	address string
}

// NewSigner derives a signer from a 32-byte Ed25519 seed.
func NewSigner(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidSecretKey, ed25519.SeedSize, len(seed))
	}
	key := ed25519.NewKeyFromSeed(seed)
	return &Signer{key: key, address: deriveAddress(key.Public().(ed25519.PublicKey))}, nil
}

// ParseSecretKey accepts the bech32 "suiprivkey1..." export format or the
// base64 keystore format (flag byte followed by the 32-byte seed).
func ParseSecretKey(s string) (*Signer, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSecretKey)
	}

	var raw []byte
	if strings.HasPrefix(strings.ToLower(s), secretKeyHRP+"1") {
		hrp, data, err := bech32.DecodeToBase256(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
		}
		if hrp != secretKeyHRP {
			return nil, fmt.Errorf("%w: unexpected prefix %q", ErrInvalidSecretKey, hrp)
		}
		raw = data
	} else {
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
		}
		raw = data
	}

	if len(raw) != ed25519.SeedSize+1 {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSecretKey, ed25519.SeedSize+1, len(raw))
	}
	if raw[0] != ed25519Flag {
		return nil, fmt.Errorf("%w: only ed25519 keys are supported (flag %#x)", ErrInvalidSecretKey, raw[0])
	}
	return NewSigner(raw[1:])
}

// Address is the 0x-prefixed account address of the signer.
func (s *Signer) Address() string {
	return s.address
}

// PublicKey returns the raw Ed25519 public key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// SignTransaction signs base64 transaction bytes and returns the serialized
// signature (flag || signature || public key), base64 encoded.
func (s *Signer) SignTransaction(txBytesB64 string) (string, error) {
	txBytes, err := base64.StdEncoding.DecodeString(txBytesB64)
	if err != nil {
		return "", fmt.Errorf("decode tx bytes: %w", err)
	}

	digest := TransactionDigest(txBytes)
	sig := ed25519.Sign(s.key, digest[:])

	out := make([]byte, 0, 1+ed25519.SignatureSize+ed25519.PublicKeySize)
	out = append(out, ed25519Flag)
	out = append(out, sig...)
	out = append(out, s.PublicKey()...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// TransactionDigest is blake2b-256 over the intent-prefixed transaction bytes.
func TransactionDigest(txBytes []byte) [32]byte {
	msg := make([]byte, 0, len(transactionIntent)+len(txBytes))
	msg = append(msg, transactionIntent...)
	msg = append(msg, txBytes...)
	return blake2b.Sum256(msg)
}

func deriveAddress(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, ed25519Flag)
	buf = append(buf, pub...)
	sum := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:])
}
