package auth

import "context"

// Store describes persistence operations required by the access-control core.
type Store interface {
	Identities() IdentityStore
	Regions() RegionStore
	Hospitals() HospitalStore
	DeviceCredentials() DeviceCredentialStore
	AllowedEmails() AllowedEmailStore
	Audit() AuditStore
}

// IdentityStore manages accounts.
type IdentityStore interface {
	Create(ctx context.Context, id *Identity) error
	Find(ctx context.Context, id string) (*Identity, error)
	FindByUsername(ctx context.Context, username string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	List(ctx context.Context, scope Scope) ([]*Identity, error)
	UpdateLoginState(ctx context.Context, id *Identity) error
	UpdateTwoFactor(ctx context.Context, id *Identity) error
	UpdateRole(ctx context.Context, userID string, role Role) error
	UpdateAssignment(ctx context.Context, userID string, regionID, hospitalID *string) error
}

// RegionStore manages scoping anchors.
type RegionStore interface {
	Create(ctx context.Context, r *Region) error
	Find(ctx context.Context, id string) (*Region, error)
	List(ctx context.Context) ([]*Region, error)
}

// HospitalStore manages hospitals within regions.
type HospitalStore interface {
	Create(ctx context.Context, h *Hospital) error
	Find(ctx context.Context, id string) (*Hospital, error)
	List(ctx context.Context, scope Scope) ([]*Hospital, error)
}

// DeviceCredentialStore manages sensor API keys.
type DeviceCredentialStore interface {
	Create(ctx context.Context, c *DeviceCredential) error
	Find(ctx context.Context, id string) (*DeviceCredential, error)
	FindBySecret(ctx context.Context, secret string) (*DeviceCredential, error)
	List(ctx context.Context, scope Scope) ([]*DeviceCredential, error)
	SetValidated(ctx context.Context, id string, validated bool) error
	SetActive(ctx context.Context, id string, active bool) error
	TouchLastUsed(ctx context.Context, id string) error
}

// AllowedEmailStore manages the registration whitelist.
type AllowedEmailStore interface {
	Create(ctx context.Context, e *AllowedEmail) error
	List(ctx context.Context) ([]*AllowedEmail, error)
	Delete(ctx context.Context, id string) error
}

// AuditStore appends immutable entries.
type AuditStore interface {
	Append(ctx context.Context, rec *AuditRecord) error
}
