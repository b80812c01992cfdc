package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"aquawatch.org/internal/ids"
)

// Recorder receives security events. Implementations must be
// best-effort: Record never returns an error and never blocks the
// primary operation.
type Recorder interface {
	Record(ctx context.Context, rec AuditRecord)
}

// Service provides the identity and access-control operations consumed
// by the HTTP layer.
type Service struct {
	store  Store
	tokens *TokenIssuer
	totp   *TOTPEngine
	audit  Recorder
	now    func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithAudit attaches a best-effort audit recorder.
func WithAudit(rec Recorder) ServiceOption {
	return func(s *Service) error {
		s.audit = rec
		return nil
	}
}

// WithTOTPIssuer overrides the issuer label in provisioning URIs.
func WithTOTPIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		s.totp = NewTOTPEngine(issuer, s.now)
		return nil
	}
}

// NewService constructs the core service around a store and a token issuer.
func NewService(store Store, tokens *TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token issuer is required")
	}
	svc := &Service{
		store:  store,
		tokens: tokens,
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	if svc.totp == nil {
		svc.totp = NewTOTPEngine("AquaWatch", svc.now)
	}
	return svc, nil
}

// record forwards to the audit recorder when one is attached. The
// primary state change has already committed by the time this runs.
func (s *Service) record(ctx context.Context, rec AuditRecord) {
	if s.audit == nil {
		return
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = s.now().UTC()
	}
	s.audit.Record(ctx, rec)
}

// Register creates a Pending account after the whitelist admits the email.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Identity, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}

	entries, err := s.store.AllowedEmails().List(ctx)
	if err != nil {
		return nil, err
	}
	if !MatchAllowedEmail(email, derefAll(entries)) {
		return nil, fmt.Errorf("%w: email not authorized for registration", ErrForbidden)
	}

	if _, err := s.store.Identities().FindByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("%w: username already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if _, err := s.store.Identities().FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	id := &Identity{
		ID:           ids.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         RolePending,
	}
	if err := s.store.Identities().Create(ctx, id); err != nil {
		return nil, err
	}

	s.record(ctx, AuditRecord{
		ActorID: id.ID, ActorName: id.Username,
		Action: "user_register", ResourceType: "user", ResourceID: id.ID,
		Details: map[string]any{"email": email}, Outcome: "success",
	})
	return id, nil
}

// LoginResult is the outcome of the first authentication factor.
type LoginResult struct {
	TwoFactorRequired bool
	Tokens            TokenPair
	Identity          *Identity
}

// Login verifies the first factor. The error for an unknown username
// and a wrong password is identical so callers cannot enumerate
// accounts.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	id, err := s.store.Identities().FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.record(ctx, AuditRecord{
				Action: "user_login", ResourceType: "user",
				Details: map[string]any{"username": username, "reason": "unknown account"},
				Outcome: "failure",
			})
			return LoginResult{}, ErrUnauthorized
		}
		return LoginResult{}, err
	}

	if !VerifyPassword(id.PasswordHash, password) {
		recordLoginFailure(id, s.now())
		if err := s.store.Identities().UpdateLoginState(ctx, id); err != nil {
			return LoginResult{}, err
		}
		s.record(ctx, AuditRecord{
			Action: "user_login", ResourceType: "user", ResourceID: id.ID,
			Details: map[string]any{"username": username, "reason": "invalid password"},
			Outcome: "failure",
		})
		return LoginResult{}, ErrUnauthorized
	}

	if id.Locked(s.now()) {
		s.record(ctx, AuditRecord{
			Action: "user_login", ResourceType: "user", ResourceID: id.ID,
			Details: map[string]any{"username": username, "reason": "account locked"},
			Outcome: "failure",
		})
		return LoginResult{}, fmt.Errorf("%w until %s", ErrLocked, id.LockedUntil.UTC().Format(time.RFC3339))
	}

	if id.TwoFAEnabled {
		return LoginResult{TwoFactorRequired: true, Identity: id}, nil
	}

	if err := s.finishLogin(ctx, id); err != nil {
		return LoginResult{}, err
	}
	pair, err := s.tokens.Issue(id.Username)
	if err != nil {
		return LoginResult{}, err
	}
	s.record(ctx, AuditRecord{
		ActorID: id.ID, ActorName: id.Username,
		Action: "user_login", ResourceType: "user", ResourceID: id.ID,
		Outcome: "success",
	})
	return LoginResult{Tokens: pair, Identity: id}, nil
}

// CompleteTwoFactor verifies the TOTP code and finishes a 2FA login.
func (s *Service) CompleteTwoFactor(ctx context.Context, username, code string) (TokenPair, error) {
	id, err := s.store.Identities().FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	if !id.TwoFAEnabled || id.TOTPSecret == "" {
		return TokenPair{}, ErrUnauthorized
	}
	if !s.totp.Verify(id.TOTPSecret, code) {
		recordLoginFailure(id, s.now())
		if err := s.store.Identities().UpdateLoginState(ctx, id); err != nil {
			return TokenPair{}, err
		}
		s.record(ctx, AuditRecord{
			Action: "user_login", ResourceType: "user", ResourceID: id.ID,
			Details: map[string]any{"username": id.Username, "reason": "invalid 2fa code"},
			Outcome: "failure",
		})
		return TokenPair{}, ErrUnauthorized
	}

	if err := s.finishLogin(ctx, id); err != nil {
		return TokenPair{}, err
	}
	pair, err := s.tokens.Issue(id.Username)
	if err != nil {
		return TokenPair{}, err
	}
	s.record(ctx, AuditRecord{
		ActorID: id.ID, ActorName: id.Username,
		Action: "user_login", ResourceType: "user", ResourceID: id.ID,
		Details: map[string]any{"second_factor": "totp"}, Outcome: "success",
	})
	return pair, nil
}

func (s *Service) finishLogin(ctx context.Context, id *Identity) error {
	clearLoginFailures(id)
	now := s.now().UTC()
	id.LastLogin = &now
	return s.store.Identities().UpdateLoginState(ctx, id)
}

// Refresh exchanges a valid refresh token for a new access+refresh
// pair. The old refresh token is not revoked; it stays valid until its
// natural expiry (see DESIGN.md).
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return TokenPair{}, ErrUnauthorized
	}
	id, err := s.store.Identities().FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	return s.tokens.Issue(id.Username)
}

// Authenticate resolves an access token to a principal with its scope
// predicate. A misassigned RegionAdmin or HospitalUser still
// authenticates; scoped operations surface ErrInvalidState when the
// predicate is actually needed.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	claims, err := s.tokens.Verify(accessToken, TokenAccess)
	if err != nil {
		return Principal{}, ErrUnauthorized
	}
	id, err := s.store.Identities().FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}
	scope, err := ScopeFor(id)
	if err != nil {
		scope = Scope{Kind: ScopeNone}
	}
	return Principal{Identity: id, Scope: scope}, nil
}

// TwoFactorEnrollment is returned once when 2FA is enabled.
type TwoFactorEnrollment struct {
	Secret            string
	ProvisioningURI   string
	ProvisioningImage string
}

// EnableTwoFactor enrolls the caller. Always generates a fresh secret;
// enabling twice is a conflict.
func (s *Service) EnableTwoFactor(ctx context.Context, p Principal) (TwoFactorEnrollment, error) {
	id := p.Identity
	if id.TwoFAEnabled {
		return TwoFactorEnrollment{}, fmt.Errorf("%w: 2fa already enabled", ErrConflict)
	}
	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return TwoFactorEnrollment{}, err
	}
	img, err := s.totp.ProvisioningImage(secret, id.Username)
	if err != nil {
		return TwoFactorEnrollment{}, err
	}

	id.TOTPSecret = secret
	id.TwoFAEnabled = true
	if err := s.store.Identities().UpdateTwoFactor(ctx, id); err != nil {
		return TwoFactorEnrollment{}, err
	}
	s.record(ctx, AuditRecord{
		ActorID: id.ID, ActorName: id.Username,
		Action: "2fa_enable", ResourceType: "user", ResourceID: id.ID,
		Outcome: "success",
	})
	return TwoFactorEnrollment{
		Secret:            secret,
		ProvisioningURI:   s.totp.ProvisioningURI(secret, id.Username),
		ProvisioningImage: img,
	}, nil
}

// DisableTwoFactor clears the stored secret entirely; re-enabling later
// generates a new one.
func (s *Service) DisableTwoFactor(ctx context.Context, p Principal) error {
	id := p.Identity
	if !id.TwoFAEnabled {
		return fmt.Errorf("%w: 2fa is not enabled", ErrConflict)
	}
	id.TwoFAEnabled = false
	id.TOTPSecret = ""
	if err := s.store.Identities().UpdateTwoFactor(ctx, id); err != nil {
		return err
	}
	s.record(ctx, AuditRecord{
		ActorID: id.ID, ActorName: id.Username,
		Action: "2fa_disable", ResourceType: "user", ResourceID: id.ID,
		Outcome: "success",
	})
	return nil
}

// ListIdentities returns the accounts visible to the caller's scope.
func (s *Service) ListIdentities(ctx context.Context, p Principal) ([]*Identity, error) {
	if !p.Identity.Role.CanManageUsers() {
		return nil, ErrForbidden
	}
	scope, err := ScopeFor(p.Identity)
	if err != nil {
		return nil, err
	}
	return s.store.Identities().List(ctx, scope)
}

// ChangeRole sets another account's role. Admin only; never one's own.
func (s *Service) ChangeRole(ctx context.Context, p Principal, targetID string, role Role) error {
	if !p.Identity.Role.CanAdminister() {
		return ErrForbidden
	}
	if targetID == p.Identity.ID {
		return fmt.Errorf("%w: cannot change your own role", ErrForbidden)
	}
	if _, err := ParseRole(int(role)); err != nil {
		return err
	}
	target, err := s.store.Identities().Find(ctx, targetID)
	if err != nil {
		return err
	}
	oldRole := target.Role
	if err := s.store.Identities().UpdateRole(ctx, targetID, role); err != nil {
		return err
	}
	s.record(ctx, AuditRecord{
		ActorID: p.Identity.ID, ActorName: p.Identity.Username,
		Action: "role_update", ResourceType: "user", ResourceID: targetID,
		Details: map[string]any{
			"target_username": target.Username,
			"old_role":        oldRole.String(),
			"new_role":        role.String(),
		},
		Outcome: "success",
	})
	return nil
}

// AssignScope sets a target account's region/hospital assignment.
// Admins assign anywhere; RegionAdmins only within their own region,
// which is a narrower check than the read predicate.
func (s *Service) AssignScope(ctx context.Context, p Principal, targetID string, regionID, hospitalID *string) error {
	actor := p.Identity
	if !actor.Role.CanManageUsers() {
		return ErrForbidden
	}

	target, err := s.store.Identities().Find(ctx, targetID)
	if err != nil {
		return err
	}

	if regionID != nil && *regionID != "" {
		if _, err := s.store.Regions().Find(ctx, *regionID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: region %s does not exist", ErrInvalidInput, *regionID)
			}
			return err
		}
	}

	var hospital *Hospital
	if hospitalID != nil && *hospitalID != "" {
		hospital, err = s.store.Hospitals().Find(ctx, *hospitalID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: hospital %s does not exist", ErrInvalidInput, *hospitalID)
			}
			return err
		}
	}
	if err := CheckAssignment(regionID, hospital); err != nil {
		return err
	}

	if actor.Role == RoleRegionAdmin {
		scope, err := ScopeFor(actor)
		if err != nil {
			return err
		}
		var targetHospital *Hospital
		if target.HospitalID != nil && *target.HospitalID != "" {
			targetHospital, _ = s.store.Hospitals().Find(ctx, *target.HospitalID)
		}
		if !scope.PermitsIdentity(target, targetHospital) {
			return fmt.Errorf("%w: target user is outside your region", ErrForbidden)
		}
		if hospital != nil && hospital.RegionID != scope.RegionID {
			return fmt.Errorf("%w: hospital is outside your region", ErrForbidden)
		}
		if regionID != nil && *regionID != "" && *regionID != scope.RegionID {
			return fmt.Errorf("%w: cannot assign users to another region", ErrForbidden)
		}
	}

	if err := s.store.Identities().UpdateAssignment(ctx, targetID, regionID, hospitalID); err != nil {
		return err
	}
	s.record(ctx, AuditRecord{
		ActorID: actor.ID, ActorName: actor.Username,
		Action: "user_assign", ResourceType: "user", ResourceID: targetID,
		Details: map[string]any{
			"target_username": target.Username,
			"region_id":       deref(regionID),
			"hospital_id":     deref(hospitalID),
		},
		Outcome: "success",
	})
	return nil
}

// CreateRegion adds a scoping anchor. Admin only.
func (s *Service) CreateRegion(ctx context.Context, p Principal, name, code string) (*Region, error) {
	if !p.Identity.Role.CanAdminister() {
		return nil, ErrForbidden
	}
	name, code = strings.TrimSpace(name), strings.TrimSpace(code)
	if name == "" || code == "" {
		return nil, fmt.Errorf("%w: region name and code are required", ErrInvalidInput)
	}
	r := &Region{ID: ids.New(), Name: name, Code: code}
	if err := s.store.Regions().Create(ctx, r); err != nil {
		return nil, err
	}
	s.record(ctx, AuditRecord{
		ActorID: p.Identity.ID, ActorName: p.Identity.Username,
		Action: "region_create", ResourceType: "region", ResourceID: r.ID,
		Details: map[string]any{"name": name}, Outcome: "success",
	})
	return r, nil
}

// ListRegions is admin-only; regions are global objects.
func (s *Service) ListRegions(ctx context.Context, p Principal) ([]*Region, error) {
	if !p.Identity.Role.CanManageUsers() {
		return nil, ErrForbidden
	}
	return s.store.Regions().List(ctx)
}

// CreateHospital adds a hospital under an existing region. Admin only.
func (s *Service) CreateHospital(ctx context.Context, p Principal, name, code, regionID, address string) (*Hospital, error) {
	if !p.Identity.Role.CanAdminister() {
		return nil, ErrForbidden
	}
	name, code, regionID = strings.TrimSpace(name), strings.TrimSpace(code), strings.TrimSpace(regionID)
	if name == "" || code == "" || regionID == "" {
		return nil, fmt.Errorf("%w: hospital name, code and region are required", ErrInvalidInput)
	}
	if _, err := s.store.Regions().Find(ctx, regionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: region %s does not exist", ErrInvalidInput, regionID)
		}
		return nil, err
	}
	h := &Hospital{ID: ids.New(), Name: name, Code: code, RegionID: regionID, Address: strings.TrimSpace(address)}
	if err := s.store.Hospitals().Create(ctx, h); err != nil {
		return nil, err
	}
	s.record(ctx, AuditRecord{
		ActorID: p.Identity.ID, ActorName: p.Identity.Username,
		Action: "hospital_create", ResourceType: "hospital", ResourceID: h.ID,
		Details: map[string]any{"name": name, "region_id": regionID}, Outcome: "success",
	})
	return h, nil
}

// ListHospitals applies the caller's scope predicate.
func (s *Service) ListHospitals(ctx context.Context, p Principal) ([]*Hospital, error) {
	scope, err := ScopeFor(p.Identity)
	if err != nil {
		return nil, err
	}
	if scope.Kind == ScopeNone {
		return nil, ErrForbidden
	}
	return s.store.Hospitals().List(ctx, scope)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefAll(entries []*AllowedEmail) []AllowedEmail {
	out := make([]AllowedEmail, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}

// generateDeviceSecret returns an opaque, URL-safe device secret.
func generateDeviceSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "awk_" + base64.RawURLEncoding.EncodeToString(raw), nil
}
