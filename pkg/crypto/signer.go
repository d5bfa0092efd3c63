package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SigningError wraps a failure in key handling or signature production.
// Its message never carries key material.
type SigningError struct {
	Op  string
	Err error
}

func (e *SigningError) Error() string { return fmt.Sprintf("signing: %s: %v", e.Op, e.Err) }
func (e *SigningError) Unwrap() error { return e.Err }

// Signer holds the secp256k1 key that authorizes exchange actions.
// The key is immutable after construction, so a single Signer may be shared
// across goroutines. The key must never reach logs or persisted state.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	address    common.Address
}

// GenerateKey creates a Signer around a fresh random key pair.
func GenerateKey() (*Signer, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, &SigningError{Op: "generate key", Err: err}
	}
	return newSigner(privateKey)
}

// FromPrivateKeyHex creates a Signer from a hex-encoded private key,
// with or without the 0x prefix.
func FromPrivateKeyHex(hexKey string) (*Signer, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, &SigningError{Op: "parse private key", Err: err}
	}
	return newSigner(privateKey)
}

func newSigner(privateKey *ecdsa.PrivateKey) (*Signer, error) {
	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, &SigningError{Op: "derive public key", Err: fmt.Errorf("not an ECDSA key")}
	}
	return &Signer{
		privateKey: privateKey,
		publicKey:  publicKey,
		address:    crypto.PubkeyToAddress(*publicKey),
	}, nil
}

// Address returns the Ethereum address derived from the public key. This is
// the address the exchange recovers from every action signature.
func (s *Signer) Address() common.Address {
	return s.address
}

// Sign signs a 32-byte digest and returns the signature in
// [R || S || V] form (65 bytes, V as raw recovery id 0 or 1).
func (s *Signer) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, &SigningError{Op: "sign", Err: fmt.Errorf("digest must be 32 bytes, got %d", len(hash))}
	}
	signature, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, &SigningError{Op: "sign", Err: err}
	}
	return signature, nil
}

// VerifySignature reports whether signature over hash was produced by address.
func VerifySignature(address common.Address, hash []byte, signature []byte) bool {
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false
	}
	return recovered == address
}

// RecoverAddress recovers the signing address from a 32-byte digest and a
// 65-byte [R || S || V] signature with V as raw recovery id.
func RecoverAddress(hash []byte, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	if len(hash) != 32 {
		return common.Address{}, fmt.Errorf("invalid hash length: %d", len(hash))
	}

	publicKeyBytes, err := crypto.Ecrecover(hash, signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	publicKey, err := crypto.UnmarshalPubkey(publicKeyBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unmarshal public key: %w", err)
	}
	return crypto.PubkeyToAddress(*publicKey), nil
}
