// Package signing signs product verification links with HMAC-SHA256 so a
// printed label can be checked without a database lookup of the label itself.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Signer generates and validates signatures over product ids.
type Signer struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

// NewSigner creates a Signer. baseURL is the public origin the verification
// links point at; ttl bounds how long a link stays valid.
func NewSigner(secret []byte, baseURL string, ttl time.Duration) *Signer {
	return &Signer{secret: secret, baseURL: baseURL, ttl: ttl, now: time.Now}
}

// Sign returns the hex signature for a product id and expiry.
func (s *Signer) Sign(productID string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", productID, expiresUnix)
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate reports whether signature matches and the expiry has not passed.
func (s *Signer) Validate(productID, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	if time.Unix(exp, 0).Before(s.now()) {
		return false
	}
	expected := s.Sign(productID, exp)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyURL builds a signed verification link for productID.
func (s *Signer) VerifyURL(productID string) string {
	exp := s.now().Add(s.ttl).Unix()
	q := url.Values{}
	q.Set("product", productID)
	q.Set("expires", strconv.FormatInt(exp, 10))
	q.Set("signature", s.Sign(productID, exp))
	return s.baseURL + "/api/blockchain/verify?" + q.Encode()
}
