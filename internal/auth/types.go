package auth

import "time"

// Identity is a registered account with credentials, role and optional
// organizational assignment.
type Identity struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string

	TOTPSecret   string
	TwoFAEnabled bool

	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLogin           *time.Time

	Role       Role
	RegionID   *string
	HospitalID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Locked reports whether the identity is inside its lockout window.
// The lock is advisory: no background job clears it, the expiry is
// simply checked against the clock.
func (i *Identity) Locked(now time.Time) bool {
	return i.LockedUntil != nil && now.Before(*i.LockedUntil)
}

// Region is a top-level organizational unit used as a scoping anchor.
type Region struct {
	ID        string
	Name      string
	Code      string
	CreatedAt time.Time
}

// Hospital belongs to exactly one region.
type Hospital struct {
	ID        string
	Name      string
	Code      string
	RegionID  string
	Address   string
	CreatedAt time.Time
}

// DeviceCredential is the API key a sensor presents on ingestion.
// The secret is stored as given; see the open question on hashing at
// rest in DESIGN.md.
type DeviceCredential struct {
	ID          string
	Secret      string
	SensorID    string
	HospitalID  string
	Description string
	Active      bool
	Validated   bool
	CreatedAt   time.Time
	LastUsed    *time.Time
}

// AllowedEmail is a registration whitelist entry: either a literal
// address or a domain pattern beginning with "@".
type AllowedEmail struct {
	ID        string
	Email     string
	CreatedBy string
	CreatedAt time.Time
}

// AuditRecord is an immutable append-only security event.
type AuditRecord struct {
	ID           string
	OccurredAt   time.Time
	ActorID      string // empty for system actions
	ActorName    string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
	IPAddress    string
	UserAgent    string
	Outcome      string // "success" or "failure"
}
