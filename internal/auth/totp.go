package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// RFC 6238 parameters. Fixed: every deployed authenticator app expects
// SHA1 / 6 digits / 30 second steps, and the skew of one step each side
// absorbs sensor-site clock drift.
const (
	totpSecretBytes = 20
	totpDigits      = 6
	totpPeriod      = 30
	totpSkew        = 1
)

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTPEngine generates enrollment secrets and verifies time-based codes.
type TOTPEngine struct {
	issuer string
	now    func() time.Time
}

// NewTOTPEngine constructs the engine. The issuer appears in the
// provisioning URI label shown by authenticator apps.
func NewTOTPEngine(issuer string, now func() time.Time) *TOTPEngine {
	if strings.TrimSpace(issuer) == "" {
		issuer = "AquaWatch"
	}
	if now == nil {
		now = time.Now
	}
	return &TOTPEngine{issuer: issuer, now: now}
}

// GenerateSecret returns a fresh random base32 secret. Never reused
// across enrollments.
func (e *TOTPEngine) GenerateSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base32NoPad.EncodeToString(raw), nil
}

// ProvisioningURI builds the otpauth:// URI an authenticator app scans.
func (e *TOTPEngine) ProvisioningURI(secret, account string) string {
	label := url.PathEscape(e.issuer + ":" + account)
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", e.issuer)
	return "otpauth://totp/" + label + "?" + v.Encode()
}

// ProvisioningImage renders the provisioning URI as a base64 PNG data
// URL suitable for inline display during enrollment.
func (e *TOTPEngine) ProvisioningImage(secret, account string) (string, error) {
	png, err := qrcode.Encode(e.ProvisioningURI(secret, account), qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// Verify checks a submitted code against the current window and one
// window each side. Pure computation; no side effects.
func (e *TOTPEngine) Verify(secret, code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != totpDigits || !isDigits(code) {
		return false
	}
	key, err := base32NoPad.DecodeString(strings.ToUpper(strings.TrimRight(secret, "=")))
	if err != nil || len(key) == 0 {
		return false
	}
	counter := e.now().Unix() / totpPeriod
	for step := int64(-totpSkew); step <= totpSkew; step++ {
		c := counter + step
		if c < 0 {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(hotp(key, c)), []byte(code)) == 1 {
			return true
		}
	}
	return false
}

// CodeAt computes the code for an arbitrary instant. Exposed for tests
// and provisioning previews.
func (e *TOTPEngine) CodeAt(secret string, at time.Time) (string, error) {
	key, err := base32NoPad.DecodeString(strings.ToUpper(strings.TrimRight(secret, "=")))
	if err != nil {
		return "", err
	}
	if len(key) == 0 {
		return "", errors.New("empty totp secret")
	}
	return hotp(key, at.Unix()/totpPeriod), nil
}

func hotp(key []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < totpDigits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", totpDigits, bin%mod)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
