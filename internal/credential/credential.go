// Package credential holds the password and token primitives: hashing,
// session token generation, and the generated logins/passwords handed to
// accounts that never self-register.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Hash returns the hex sha256 digest of the password. The digest is
// deterministic so login reduces to an equality check against the stored
// value. No per-account salt is applied; bcrypt-style salted schemes would
// break the equality contract the stores rely on.
func Hash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// GenerateToken returns a URL-safe bearer token with 256 bits of entropy.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GeneratePassword returns a random alphanumeric password of length n.
func GeneratePassword(n int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b.WriteByte(passwordAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// GuardianLogin derives a login for a newly registered guardian.
func GuardianLogin(now time.Time) string {
	return "user_" + now.Format("20060102150405")
}

// DependentLogin derives a login for a child account from the guardian's
// login. The guardian's own prefix is stripped so chained prefixes never
// accumulate.
func DependentLogin(parentLogin string, now time.Time) string {
	base := strings.TrimPrefix(parentLogin, "user_")
	base = strings.TrimPrefix(base, "child_")
	return fmt.Sprintf("child_%s_%s", base, now.Format("150405"))
}

// LoginSuffix returns a short random disambiguator appended to a candidate
// login when a uniqueness conflict forces a retry.
func LoginSuffix() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("login suffix: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
