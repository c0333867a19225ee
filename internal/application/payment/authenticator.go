package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	dompay "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/payment"
)

// Authenticator checks that a webhook body was signed with the shared secret.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Verify compares the hex HMAC-SHA256 of the raw body against signature in
// constant time. An empty secret never authenticates.
func (a *Authenticator) Verify(body []byte, signature string) error {
	if len(a.secret) == 0 {
		return fmt.Errorf("%w: webhook secret not configured", dompay.ErrAuthentication)
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) != sha256.Size {
		return dompay.ErrAuthentication
	}
	if !hmac.Equal(got, a.sign(body)) {
		return dompay.ErrAuthentication
	}
	return nil
}

// Sign returns the lowercase hex signature of body. Used by the sandbox and tests.
func (a *Authenticator) Sign(body []byte) string {
	return hex.EncodeToString(a.sign(body))
}

func (a *Authenticator) sign(body []byte) []byte {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write(body)
	return mac.Sum(nil)
}
