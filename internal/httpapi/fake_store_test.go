package httpapi

import (
	"context"
	"fmt"
	"time"

	"aquawatch.org/internal/auth"
)

// fakeStore is a map-backed auth.Store for exercising the HTTP surface
// without a database.
type fakeStore struct {
	identities map[string]*auth.Identity
	regions    map[string]*auth.Region
	hospitals  map[string]*auth.Hospital
	devices    map[string]*auth.DeviceCredential
	allowed    map[string]*auth.AllowedEmail
	audits     []*auth.AuditRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		identities: map[string]*auth.Identity{},
		regions:    map[string]*auth.Region{},
		hospitals:  map[string]*auth.Hospital{},
		devices:    map[string]*auth.DeviceCredential{},
		allowed:    map[string]*auth.AllowedEmail{},
	}
}

func (f *fakeStore) Identities() auth.IdentityStore                { return (*fakeIdentities)(f) }
func (f *fakeStore) Regions() auth.RegionStore                     { return (*fakeRegions)(f) }
func (f *fakeStore) Hospitals() auth.HospitalStore                 { return (*fakeHospitals)(f) }
func (f *fakeStore) DeviceCredentials() auth.DeviceCredentialStore { return (*fakeDevices)(f) }
func (f *fakeStore) AllowedEmails() auth.AllowedEmailStore         { return (*fakeAllowed)(f) }
func (f *fakeStore) Audit() auth.AuditStore                        { return (*fakeAudit)(f) }

type fakeIdentities fakeStore

func (f *fakeIdentities) Create(_ context.Context, id *auth.Identity) error {
	for _, existing := range f.identities {
		if existing.Username == id.Username || existing.Email == id.Email {
			return fmt.Errorf("%w: duplicate identity", auth.ErrConflict)
		}
	}
	f.identities[id.ID] = id
	return nil
}

func (f *fakeIdentities) Find(_ context.Context, id string) (*auth.Identity, error) {
	if stored, ok := f.identities[id]; ok {
		return stored, nil
	}
	return nil, auth.ErrNotFound
}

func (f *fakeIdentities) FindByUsername(_ context.Context, username string) (*auth.Identity, error) {
	for _, stored := range f.identities {
		if stored.Username == username {
			return stored, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (f *fakeIdentities) FindByEmail(_ context.Context, email string) (*auth.Identity, error) {
	for _, stored := range f.identities {
		if stored.Email == email {
			return stored, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (f *fakeIdentities) List(_ context.Context, scope auth.Scope) ([]*auth.Identity, error) {
	var out []*auth.Identity
	for _, stored := range f.identities {
		var hospital *auth.Hospital
		if stored.HospitalID != nil {
			hospital = f.hospitals[*stored.HospitalID]
		}
		if scope.PermitsIdentity(stored, hospital) {
			out = append(out, stored)
		}
	}
	return out, nil
}

func (f *fakeIdentities) UpdateLoginState(_ context.Context, id *auth.Identity) error {
	stored, ok := f.identities[id.ID]
	if !ok {
		return auth.ErrNotFound
	}
	stored.FailedLoginAttempts = id.FailedLoginAttempts
	stored.LockedUntil = id.LockedUntil
	stored.LastLogin = id.LastLogin
	return nil
}

func (f *fakeIdentities) UpdateTwoFactor(_ context.Context, id *auth.Identity) error {
	stored, ok := f.identities[id.ID]
	if !ok {
		return auth.ErrNotFound
	}
	stored.TwoFAEnabled = id.TwoFAEnabled
	stored.TOTPSecret = id.TOTPSecret
	return nil
}

func (f *fakeIdentities) UpdateRole(_ context.Context, userID string, role auth.Role) error {
	stored, ok := f.identities[userID]
	if !ok {
		return auth.ErrNotFound
	}
	stored.Role = role
	return nil
}

func (f *fakeIdentities) UpdateAssignment(_ context.Context, userID string, regionID, hospitalID *string) error {
	stored, ok := f.identities[userID]
	if !ok {
		return auth.ErrNotFound
	}
	stored.RegionID = regionID
	stored.HospitalID = hospitalID
	return nil
}

type fakeRegions fakeStore

func (f *fakeRegions) Create(_ context.Context, r *auth.Region) error {
	for _, existing := range f.regions {
		if existing.Code == r.Code || existing.Name == r.Name {
			return fmt.Errorf("%w: duplicate region", auth.ErrConflict)
		}
	}
	f.regions[r.ID] = r
	return nil
}

func (f *fakeRegions) Find(_ context.Context, id string) (*auth.Region, error) {
	if stored, ok := f.regions[id]; ok {
		return stored, nil
	}
	return nil, auth.ErrNotFound
}

func (f *fakeRegions) List(_ context.Context) ([]*auth.Region, error) {
	var out []*auth.Region
	for _, stored := range f.regions {
		out = append(out, stored)
	}
	return out, nil
}

type fakeHospitals fakeStore

func (f *fakeHospitals) Create(_ context.Context, h *auth.Hospital) error {
	f.hospitals[h.ID] = h
	return nil
}

func (f *fakeHospitals) Find(_ context.Context, id string) (*auth.Hospital, error) {
	if stored, ok := f.hospitals[id]; ok {
		return stored, nil
	}
	return nil, auth.ErrNotFound
}

func (f *fakeHospitals) List(_ context.Context, scope auth.Scope) ([]*auth.Hospital, error) {
	var out []*auth.Hospital
	for _, stored := range f.hospitals {
		if scope.PermitsHospital(stored) {
			out = append(out, stored)
		}
	}
	return out, nil
}

type fakeDevices fakeStore

func (f *fakeDevices) Create(_ context.Context, c *auth.DeviceCredential) error {
	for _, existing := range f.devices {
		if existing.SensorID == c.SensorID {
			return fmt.Errorf("%w: sensor already has a key", auth.ErrConflict)
		}
	}
	f.devices[c.ID] = c
	return nil
}

func (f *fakeDevices) Find(_ context.Context, id string) (*auth.DeviceCredential, error) {
	if stored, ok := f.devices[id]; ok {
		return stored, nil
	}
	return nil, auth.ErrNotFound
}

func (f *fakeDevices) FindBySecret(_ context.Context, secret string) (*auth.DeviceCredential, error) {
	for _, stored := range f.devices {
		if stored.Secret == secret {
			return stored, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (f *fakeDevices) List(_ context.Context, scope auth.Scope) ([]*auth.DeviceCredential, error) {
	var out []*auth.DeviceCredential
	for _, stored := range f.devices {
		if scope.PermitsHospital(f.hospitals[stored.HospitalID]) {
			cp := *stored
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeDevices) SetValidated(_ context.Context, id string, validated bool) error {
	stored, ok := f.devices[id]
	if !ok {
		return auth.ErrNotFound
	}
	stored.Validated = validated
	return nil
}

func (f *fakeDevices) SetActive(_ context.Context, id string, active bool) error {
	stored, ok := f.devices[id]
	if !ok {
		return auth.ErrNotFound
	}
	stored.Active = active
	return nil
}

func (f *fakeDevices) TouchLastUsed(_ context.Context, id string) error {
	stored, ok := f.devices[id]
	if !ok {
		return auth.ErrNotFound
	}
	now := time.Now().UTC()
	stored.LastUsed = &now
	return nil
}

type fakeAllowed fakeStore

func (f *fakeAllowed) Create(_ context.Context, e *auth.AllowedEmail) error {
	for _, existing := range f.allowed {
		if existing.Email == e.Email {
			return fmt.Errorf("%w: entry already whitelisted", auth.ErrConflict)
		}
	}
	f.allowed[e.ID] = e
	return nil
}

func (f *fakeAllowed) List(_ context.Context) ([]*auth.AllowedEmail, error) {
	var out []*auth.AllowedEmail
	for _, stored := range f.allowed {
		out = append(out, stored)
	}
	return out, nil
}

func (f *fakeAllowed) Delete(_ context.Context, id string) error {
	if _, ok := f.allowed[id]; !ok {
		return auth.ErrNotFound
	}
	delete(f.allowed, id)
	return nil
}

type fakeAudit fakeStore

func (f *fakeAudit) Append(_ context.Context, rec *auth.AuditRecord) error {
	f.audits = append(f.audits, rec)
	return nil
}
