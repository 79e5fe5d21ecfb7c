package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet represents a key pair an account uses to transact on the ledger.
// The public key is the identity of the account.
type Wallet struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
	Address    string `json:"address"`
}

// NewWallet generates a wallet from a random private key.
func NewWallet() (Wallet, error) {
	pk, err := crypto.GenerateKey()
	if err != nil {
		return Wallet{}, err
	}

	return ToWallet(pk), nil
}

// NewWalletFromSeeds generates the same wallet every time the same seeds
// are provided. This is handy for demos and well known accounts.
func NewWalletFromSeeds(seeds ...string) (Wallet, error) {
	sum := sha256.Sum256([]byte(strings.Join(seeds, "")))

	pk, err := crypto.ToECDSA(sum[:])
	if err != nil {
		return Wallet{}, err
	}

	return ToWallet(pk), nil
}

// ToWallet converts the ecdsa private key into a wallet.
func ToWallet(pk *ecdsa.PrivateKey) Wallet {
	return Wallet{
		PublicKey:  PublicKey(pk.PublicKey),
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(pk)),
		Address:    crypto.PubkeyToAddress(pk.PublicKey).Hex(),
	}
}
