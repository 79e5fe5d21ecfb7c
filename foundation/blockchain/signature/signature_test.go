package signature_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
)

const (
	pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
)

// =============================================================================

func Test_Signing(t *testing.T) {
	pk, err := signature.ToPrivateKey(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}
	pub := signature.PublicKey(pk.PublicKey)

	sig, err := signature.Sign(pkHexKey, "5"+pub)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	if !signature.Verify(sig, "5"+pub, pub) {
		t.Fatalf("Should be able to verify the signature.")
	}

	if signature.Verify(sig, "6"+pub, pub) {
		t.Fatalf("Should not verify a signature for a different message.")
	}

	other, err := signature.NewWallet()
	if err != nil {
		t.Fatalf("Should be able to generate a wallet: %s", err)
	}

	if signature.Verify(sig, "5"+pub, other.PublicKey) {
		t.Fatalf("Should not verify a signature for a different public key.")
	}

	if signature.Verify("0xbad", "5"+pub, pub) {
		t.Fatalf("Should not verify a malformed signature.")
	}
}

func Test_SignConsistency(t *testing.T) {
	sig1, err := signature.Sign(pkHexKey, "Bill")
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	sig2, err := signature.Sign(pkHexKey, "Bill")
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	if sig1 != sig2 {
		t.Logf("got: %s", sig1)
		t.Logf("exp: %s", sig2)
		t.Fatalf("Should get the same signature for the same message.")
	}
}

func Test_Hash(t *testing.T) {

	// sha256("abc")
	hash := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

	h := signature.Hash("a", "b", "c")
	if h != hash {
		t.Logf("got: %s", h)
		t.Logf("exp: %s", hash)
		t.Fatalf("Should get back the right hash: %s", h[:6])
	}

	h = signature.Hash("abc")
	if h != hash {
		t.Logf("got: %s", h)
		t.Logf("exp: %s", hash)
		t.Fatalf("Should get back the same hash for the joined parts.")
	}
}

func Test_WalletFromSeeds(t *testing.T) {
	w1, err := signature.NewWalletFromSeeds("bob", "the", "builder")
	if err != nil {
		t.Fatalf("Should be able to generate a wallet: %s", err)
	}

	w2, err := signature.NewWalletFromSeeds("bob", "the", "builder")
	if err != nil {
		t.Fatalf("Should be able to generate a wallet: %s", err)
	}

	if w1 != w2 {
		t.Fatalf("Should get the same wallet for the same seeds.")
	}

	pk, err := signature.ToPrivateKey(w1.PrivateKey)
	if err != nil {
		t.Fatalf("Should be able to decode the private key: %s", err)
	}

	if signature.PublicKey(pk.PublicKey) != w1.PublicKey {
		t.Fatalf("Should get back the public key of the wallet.")
	}
}
