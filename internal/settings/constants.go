package settings

// Security setting identifiers. The catalog is fixed; only the enabled flag changes.
const (
	// TwoFactorID requires a TOTP code at login for users with an enrolled authenticator.
	TwoFactorID = "two-factor"
	// LoginAlertsID emits an operator alert for every successful login.
	LoginAlertsID = "login-alerts"
	// SessionTimeoutID documents the fixed bearer token lifetime.
	SessionTimeoutID = "session-timeout"
	// IPRestrictionID limits token issuance to the configured networks.
	IPRestrictionID = "ip-restriction"
)

// Definition describes a catalog entry and its seeded default.
type Definition struct {
	ID          string
	Name        string
	Description string
	Default     bool
}

var catalog = []Definition{
	{
		ID:          TwoFactorID,
		Name:        "Two-Factor Authentication",
		Description: "Require a second verification step when signing in",
		Default:     false,
	},
	{
		ID:          LoginAlertsID,
		Name:        "Login Alerts",
		Description: "Get notified of new sign-ins to your account",
		Default:     true,
	},
	{
		ID:          SessionTimeoutID,
		Name:        "Session Timeout",
		Description: "Automatically log out after 30 minutes of inactivity",
		Default:     true,
	},
	{
		ID:          IPRestrictionID,
		Name:        "IP Restriction",
		Description: "Limit admin access to specific IP addresses",
		Default:     false,
	},
}

// Catalog returns a copy of the security settings catalog in display order.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (Definition, bool) {
	for _, def := range catalog {
		if def.ID == id {
			return def, true
		}
	}
	return Definition{}, false
}
