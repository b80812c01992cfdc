package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aquawatch.org/internal/ids"
)

// CreateDeviceCredential issues a sensor API key in the unvalidated
// state. The secret is returned exactly once; it is not shown again.
func (s *Service) CreateDeviceCredential(ctx context.Context, p Principal, sensorID, hospitalID, description string) (*DeviceCredential, error) {
	if !p.Identity.Role.CanAdminister() {
		return nil, ErrForbidden
	}
	sensorID, hospitalID = strings.TrimSpace(sensorID), strings.TrimSpace(hospitalID)
	if sensorID == "" || hospitalID == "" {
		return nil, fmt.Errorf("%w: sensor_id and hospital_id are required", ErrInvalidInput)
	}
	if _, err := s.store.Hospitals().Find(ctx, hospitalID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: hospital %s does not exist", ErrInvalidInput, hospitalID)
		}
		return nil, err
	}

	secret, err := generateDeviceSecret()
	if err != nil {
		return nil, err
	}
	cred := &DeviceCredential{
		ID:          ids.New(),
		Secret:      secret,
		SensorID:    sensorID,
		HospitalID:  hospitalID,
		Description: strings.TrimSpace(description),
		Active:      true,
		Validated:   false,
	}
	// One key per device: the store enforces sensor_id uniqueness.
	if err := s.store.DeviceCredentials().Create(ctx, cred); err != nil {
		return nil, err
	}
	s.record(ctx, AuditRecord{
		ActorID: p.Identity.ID, ActorName: p.Identity.Username,
		Action: "api_key_create", ResourceType: "api_key", ResourceID: cred.ID,
		Details: map[string]any{"sensor_id": sensorID, "hospital_id": hospitalID},
		Outcome: "success",
	})
	return cred, nil
}

// ValidateDeviceCredential flips the admin-approval gate. Revoked keys
// cannot be validated; a new key must be issued.
func (s *Service) ValidateDeviceCredential(ctx context.Context, p Principal, credID string) error {
	if !p.Identity.Role.CanAdminister() {
		return ErrForbidden
	}
	cred, err := s.store.DeviceCredentials().Find(ctx, credID)
	if err != nil {
		return err
	}
	if !cred.Active {
		return fmt.Errorf("%w: key is revoked", ErrConflict)
	}
	if err := s.store.DeviceCredentials().SetValidated(ctx, credID, true); err != nil {
		return err
	}
	s.record(ctx, AuditRecord{
		ActorID: p.Identity.ID, ActorName: p.Identity.Username,
		Action: "api_key_validate", ResourceType: "api_key", ResourceID: credID,
		Details: map[string]any{"sensor_id": cred.SensorID, "hospital_id": cred.HospitalID},
		Outcome: "success",
	})
	return nil
}

// RevokeDeviceCredential permanently deactivates a key. One-way; there
// is no un-revoke.
func (s *Service) RevokeDeviceCredential(ctx context.Context, p Principal, credID string) error {
	if !p.Identity.Role.CanAdminister() {
		return ErrForbidden
	}
	cred, err := s.store.DeviceCredentials().Find(ctx, credID)
	if err != nil {
		return err
	}
	if err := s.store.DeviceCredentials().SetActive(ctx, credID, false); err != nil {
		return err
	}
	s.record(ctx, AuditRecord{
		ActorID: p.Identity.ID, ActorName: p.Identity.Username,
		Action: "api_key_revoke", ResourceType: "api_key", ResourceID: credID,
		Details: map[string]any{"sensor_id": cred.SensorID, "hospital_id": cred.HospitalID},
		Outcome: "success",
	})
	return nil
}

// ListDeviceCredentials returns keys visible to the caller's scope,
// with secrets blanked.
func (s *Service) ListDeviceCredentials(ctx context.Context, p Principal) ([]*DeviceCredential, error) {
	if !p.Identity.Role.CanManageUsers() {
		return nil, ErrForbidden
	}
	scope, err := ScopeFor(p.Identity)
	if err != nil {
		return nil, err
	}
	creds, err := s.store.DeviceCredentials().List(ctx, scope)
	if err != nil {
		return nil, err
	}
	for _, c := range creds {
		c.Secret = ""
	}
	return creds, nil
}

// AuthorizeDevice authenticates a sensor for ingestion. Fails closed:
// unknown or revoked secrets are Unauthorized, pending validation is
// Forbidden. Success refreshes the key's last-used timestamp.
func (s *Service) AuthorizeDevice(ctx context.Context, secret string) (*DeviceCredential, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrUnauthorized
	}
	cred, err := s.store.DeviceCredentials().FindBySecret(ctx, secret)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !cred.Active {
		return nil, ErrUnauthorized
	}
	if !cred.Validated {
		return nil, fmt.Errorf("%w: api key pending admin validation", ErrForbidden)
	}
	if err := s.store.DeviceCredentials().TouchLastUsed(ctx, cred.ID); err != nil {
		return nil, err
	}
	// System action: no actor.
	s.record(ctx, AuditRecord{
		Action: "sensor_authorized", ResourceType: "api_key", ResourceID: cred.ID,
		Details: map[string]any{"sensor_id": cred.SensorID, "hospital_id": cred.HospitalID},
		Outcome: "success",
	})
	return cred, nil
}

// AddAllowedEmail whitelists a literal address or an @domain pattern.
func (s *Service) AddAllowedEmail(ctx context.Context, p Principal, email string) (*AllowedEmail, error) {
	if !p.Identity.Role.CanAdminister() {
		return nil, ErrForbidden
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: entry must be an address or an @domain pattern", ErrInvalidInput)
	}
	entry := &AllowedEmail{ID: ids.New(), Email: email, CreatedBy: p.Identity.ID}
	if err := s.store.AllowedEmails().Create(ctx, entry); err != nil {
		return nil, err
	}
	s.record(ctx, AuditRecord{
		ActorID: p.Identity.ID, ActorName: p.Identity.Username,
		Action: "allowed_email_create", ResourceType: "allowed_email", ResourceID: entry.ID,
		Details: map[string]any{"email": email}, Outcome: "success",
	})
	return entry, nil
}

// ListAllowedEmails returns the whitelist. Admin only.
func (s *Service) ListAllowedEmails(ctx context.Context, p Principal) ([]*AllowedEmail, error) {
	if !p.Identity.Role.CanAdminister() {
		return nil, ErrForbidden
	}
	return s.store.AllowedEmails().List(ctx)
}

// RemoveAllowedEmail deletes a whitelist entry. Existing accounts are
// unaffected.
func (s *Service) RemoveAllowedEmail(ctx context.Context, p Principal, entryID string) error {
	if !p.Identity.Role.CanAdminister() {
		return ErrForbidden
	}
	if err := s.store.AllowedEmails().Delete(ctx, entryID); err != nil {
		return err
	}
	s.record(ctx, AuditRecord{
		ActorID: p.Identity.ID, ActorName: p.Identity.Username,
		Action: "allowed_email_delete", ResourceType: "allowed_email", ResourceID: entryID,
		Outcome: "success",
	})
	return nil
}

// EnsureBootstrapAdmin creates the configured admin account when it
// does not exist yet. Called once at startup; a no-op when the
// username is taken or unset.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, username, email, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil
	}
	if _, err := s.store.Identities().FindByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	id := &Identity{
		ID:           ids.New(),
		Username:     username,
		Email:        strings.TrimSpace(strings.ToLower(email)),
		PasswordHash: hash,
		Role:         RoleAdmin,
	}
	if err := s.store.Identities().Create(ctx, id); err != nil {
		return err
	}
	s.record(ctx, AuditRecord{
		Action: "bootstrap_admin_create", ResourceType: "user", ResourceID: id.ID,
		Details: map[string]any{"username": username}, Outcome: "success",
	})
	return nil
}
