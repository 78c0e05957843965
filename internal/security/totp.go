package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPIssuer labels enrolled authenticator entries.
const TOTPIssuer = "SynapseIQ Admin"

// TOTPEnrollment is the material shown to a user enrolling an authenticator app.
type TOTPEnrollment struct {
	Secret string
	URL    string
}

// GenerateTOTP creates a new TOTP secret for account.
func GenerateTOTP(account string) (TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      TOTPIssuer,
		AccountName: account,
	})
	if err != nil {
		return TOTPEnrollment{}, fmt.Errorf("security: generate totp: %w", err)
	}
	return TOTPEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// ValidateTOTP reports whether code is valid for secret at the given time, allowing one step of skew.
func ValidateTOTP(secret, code string, at time.Time) bool {
	secret = strings.TrimSpace(secret)
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
