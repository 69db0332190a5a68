package webserver

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
)

// Scheme flag prepended to the public key in address derivation.
const ed25519SchemeFlag = 0x00

func strip0x(s string) string {
	if len(s) > 1 && s[:2] == "0x" {
		return s[2:]
	}
	return s
}

// deriveAddr computes the chain address for an ed25519 public key:
// blake2b-256 over the scheme flag byte and the raw key, hex encoded.
func deriveAddr(pub ed25519.PublicKey) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte{ed25519SchemeFlag})
	h.Write(pub)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

func verifySignature(addr, pubHex, sigHex, nonce string) error {
	pubBytes, err := hex.DecodeString(strip0x(pubHex))
	if err != nil {
		return fmt.Errorf("bad public key encoding: %w", err)
	}
	if len(pubBytes) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid public key length: %d", len(pubBytes))
	}

	sigBytes, err := hex.DecodeString(strip0x(sigHex))
	if err != nil {
		return fmt.Errorf("bad signature encoding: %w", err)
	}
	if len(sigBytes) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature length: %d", len(sigBytes))
	}

	pub := ed25519.PublicKey(pubBytes)
	if !strings.EqualFold(deriveAddr(pub), addr) {
		return fmt.Errorf("address does not match public key")
	}
	if !ed25519.Verify(pub, []byte(nonce), sigBytes) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

func issueJWT(addr string, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"addr": addr,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	return token.SignedString(secret)
}
