// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// ledgerStamp is mixed into every signed message. This will make it clear
// that the signature comes from this ledger and can't be replayed somewhere
// else. Ethereum and Bitcoin do this as well.
const ledgerStamp = "\x19Ledger Signed Message:\n32"

// =============================================================================

// Hash returns the hex encoded sha256 digest of the concatenation of the
// specified parts. Every identifier in the ledger is produced this way.
func Hash(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Sign uses the specified hex encoded private key to sign the message. The
// signature is deterministic for the same key and message.
func Sign(privateKey string, message string) (string, error) {
	pk, err := ToPrivateKey(privateKey)
	if err != nil {
		return "", err
	}

	// Sign the stamped hash with the private key to produce a signature.
	sig, err := crypto.Sign(stamp(message), pk)
	if err != nil {
		return "", err
	}

	return hexutil.Encode(sig), nil
}

// Verify checks the signature was produced for the message by the private
// key belonging to the specified public key.
func Verify(signature string, message string, publicKey string) bool {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}

	pub, err := hexutil.Decode(publicKey)
	if err != nil {
		return false
	}

	// The recovery id is not part of the verification. Only the [R|S]
	// portion of the signature is checked against the public key.
	return crypto.VerifySignature(pub, stamp(message), sig[:crypto.RecoveryIDOffset])
}

// ToPrivateKey converts a hex encoded private key into an ecdsa key.
func ToPrivateKey(privateKey string) (*ecdsa.PrivateKey, error) {
	pk, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, errors.New("invalid private key")
	}

	return pk, nil
}

// PublicKey returns the hex encoded public key for the ecdsa public key.
func PublicKey(pk ecdsa.PublicKey) string {
	return hexutil.Encode(crypto.FromECDSAPub(&pk))
}

// =============================================================================

// Secp256k1 implements the signing and verification behavior the ledger
// expects from its collaborators.
type Secp256k1 struct{}

// Sign implements the signer behavior.
func (Secp256k1) Sign(privateKey string, message string) (string, error) {
	return Sign(privateKey, message)
}

// Verify implements the verifier behavior.
func (Secp256k1) Verify(signature string, message string, publicKey string) bool {
	return Verify(signature, message, publicKey)
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents the message with the
// ledger stamp embedded into the final hash.
func stamp(message string) []byte {
	msgHash := crypto.Keccak256([]byte(message))
	return crypto.Keccak256([]byte(ledgerStamp), msgHash)
}
