package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

var (
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrInvalidSignature = errors.New("invalid signature")
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// challengeTemplate is the exact text the browser wallet signs. The nonce line
// makes each challenge single-use.
const challengeTemplate = "Welcome to Real Estate Bidding Platform!\n\n" +
	"Wallet: %s\n" +
	"Sign this message to authenticate with our platform.\n\n" +
	"This request will not trigger a blockchain transaction or cost any gas fees.\n\n" +
	"Nonce: %s"

// NormalizeAddress lower-cases a wallet address for storage and comparison.
// Returns ErrInvalidAddress if the input is not a 0x-prefixed 20-byte hex string.
func NormalizeAddress(address string) (string, error) {
	if !addressPattern.MatchString(address) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(address), nil
}

// ChallengeMessage builds the sign-in challenge for a normalized address and nonce.
func ChallengeMessage(address, nonce string) string {
	return fmt.Sprintf(challengeTemplate, address, nonce)
}

// RecoverAddress recovers the signing wallet address from a personal-sign
// signature (0x-prefixed, 65 bytes: r || s || v). The message is hashed with
// the "\x19Ethereum Signed Message" prefix before recovery.
func RecoverAddress(message, hexSig string) (string, error) {
	if !strings.HasPrefix(hexSig, "0x") {
		return "", ErrInvalidSignature
	}
	sig, err := hex.DecodeString(hexSig[2:])
	if err != nil {
		return "", ErrInvalidSignature
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("%w: expected 65 bytes, got %d", ErrInvalidSignature, len(sig))
	}
	if sig[64] != 27 && sig[64] != 28 {
		return "", fmt.Errorf("%w: v is not 27 or 28", ErrInvalidSignature)
	}

	digest := personalSignDigest(message)

	// RecoverCompact wants the recovery id first
	compact := make([]byte, 65)
	compact[0] = sig[64]
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return pubkeyToAddress(pub), nil
}

// SignMessage signs a message the way a browser wallet does. Test helper for
// the verification path; the private key never reaches the server in production.
func SignMessage(message string, priv *secp256k1.PrivateKey) string {
	digest := personalSignDigest(message)
	sig := ecdsa.SignCompact(priv, digest, false)
	// move the recovery id to the end, wallet-style
	out := make([]byte, 65)
	copy(out, sig[1:])
	out[64] = sig[0]
	return "0x" + hex.EncodeToString(out)
}

func personalSignDigest(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return keccak256([]byte(prefixed))
}

func pubkeyToAddress(pub *secp256k1.PublicKey) string {
	uncompressed := pub.SerializeUncompressed()
	// drop the 0x04 prefix, keep the low 20 bytes of the keccak hash
	return "0x" + hex.EncodeToString(keccak256(uncompressed[1:])[12:])
}

func keccak256(data []byte) []byte {
	d := sha3.NewLegacyKeccak256()
	d.Write(data)
	return d.Sum(nil)
}
