// Package twofactor implements TOTP seed generation, provisioning URIs, and
// code validation per RFC 6238 (30-second step, 6 digits, HMAC-SHA1).
// All functions are pure: no storage access, no side effects.
package twofactor

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	seedBytes = 20
	period    = 30
	digits    = 6
	algorithm = "SHA1"

	// skew is the number of accepted time steps on each side of now,
	// covering ±30s of client clock drift.
	skew = 1
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSeed returns a new cryptographically random TOTP seed,
// Base32-encoded without padding.
func GenerateSeed() (string, error) {
	raw := make([]byte, seedBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return b32.EncodeToString(raw), nil
}

// ProvisioningURI builds an otpauth:// URI embedding issuer, account label,
// and seed, suitable for rendering as an enrollment QR code.
func ProvisioningURI(issuer, account, seed string) string {
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", seed)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(period))
	v.Set("digits", strconv.Itoa(digits))
	v.Set("algorithm", algorithm)

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// IsCodeValid reports whether the submitted code matches the seed at the
// current time, allowing the standard ±1 step skew window. Non-numeric or
// wrong-length codes return false; the function never returns an error.
func IsCodeValid(seed, code string) bool {
	return isCodeValidAt(seed, code, time.Now())
}

func isCodeValidAt(seed, code string, now time.Time) bool {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != digits || !isNumeric(trimmed) {
		return false
	}

	secret, err := b32.DecodeString(strings.ToUpper(seed))
	if err != nil || len(secret) == 0 {
		return false
	}

	baseCounter := now.Unix() / period
	for step := int64(-skew); step <= skew; step++ {
		counter := baseCounter + step
		if counter < 0 {
			continue
		}
		generated := hotpCode(secret, counter)
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true
		}
	}

	return false
}

// CodeAt computes the TOTP code for a seed at the given time. Exposed for
// enrollment tests and diagnostic tooling; returns an empty string for a
// seed that is not valid Base32.
func CodeAt(seed string, at time.Time) string {
	secret, err := b32.DecodeString(strings.ToUpper(seed))
	if err != nil || len(secret) == 0 {
		return ""
	}
	return hotpCode(secret, at.Unix()/period)
}

func hotpCode(secret []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
