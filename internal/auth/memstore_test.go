package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the service tests. Reads
// return copies so mutations only land through the Update methods,
// mirroring how the SQL store behaves.
type memStore struct {
	mu         sync.Mutex
	identities map[string]*Identity
	regions    map[string]*Region
	hospitals  map[string]*Hospital
	devices    map[string]*DeviceCredential
	allowed    map[string]*AllowedEmail
	audits     []*AuditRecord
}

func newMemStore() *memStore {
	return &memStore{
		identities: map[string]*Identity{},
		regions:    map[string]*Region{},
		hospitals:  map[string]*Hospital{},
		devices:    map[string]*DeviceCredential{},
		allowed:    map[string]*AllowedEmail{},
	}
}

func (m *memStore) Identities() IdentityStore               { return (*memIdentities)(m) }
func (m *memStore) Regions() RegionStore                    { return (*memRegions)(m) }
func (m *memStore) Hospitals() HospitalStore                { return (*memHospitals)(m) }
func (m *memStore) DeviceCredentials() DeviceCredentialStore { return (*memDevices)(m) }
func (m *memStore) AllowedEmails() AllowedEmailStore        { return (*memAllowed)(m) }
func (m *memStore) Audit() AuditStore                       { return (*memAudit)(m) }

type memIdentities memStore

func (m *memIdentities) Create(_ context.Context, id *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.identities {
		if existing.Username == id.Username || existing.Email == id.Email {
			return fmt.Errorf("%w: duplicate identity", ErrConflict)
		}
	}
	cp := *id
	m.identities[id.ID] = &cp
	return nil
}

func (m *memIdentities) Find(_ context.Context, id string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.identities[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *stored
	return &cp, nil
}

func (m *memIdentities) FindByUsername(_ context.Context, username string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stored := range m.identities {
		if stored.Username == username {
			cp := *stored
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memIdentities) FindByEmail(_ context.Context, email string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stored := range m.identities {
		if stored.Email == email {
			cp := *stored
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memIdentities) List(_ context.Context, scope Scope) ([]*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Identity
	for _, stored := range m.identities {
		var hospital *Hospital
		if stored.HospitalID != nil {
			hospital = m.hospitals[*stored.HospitalID]
		}
		if scope.PermitsIdentity(stored, hospital) {
			cp := *stored
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memIdentities) UpdateLoginState(_ context.Context, id *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.identities[id.ID]
	if !ok {
		return ErrNotFound
	}
	stored.FailedLoginAttempts = id.FailedLoginAttempts
	stored.LockedUntil = id.LockedUntil
	stored.LastLogin = id.LastLogin
	return nil
}

func (m *memIdentities) UpdateTwoFactor(_ context.Context, id *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.identities[id.ID]
	if !ok {
		return ErrNotFound
	}
	stored.TwoFAEnabled = id.TwoFAEnabled
	stored.TOTPSecret = id.TOTPSecret
	return nil
}

func (m *memIdentities) UpdateRole(_ context.Context, userID string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.identities[userID]
	if !ok {
		return ErrNotFound
	}
	stored.Role = role
	return nil
}

func (m *memIdentities) UpdateAssignment(_ context.Context, userID string, regionID, hospitalID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.identities[userID]
	if !ok {
		return ErrNotFound
	}
	stored.RegionID = regionID
	stored.HospitalID = hospitalID
	return nil
}

type memRegions memStore

func (m *memRegions) Create(_ context.Context, r *Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.regions {
		if existing.Code == r.Code || existing.Name == r.Name {
			return fmt.Errorf("%w: duplicate region", ErrConflict)
		}
	}
	cp := *r
	m.regions[r.ID] = &cp
	return nil
}

func (m *memRegions) Find(_ context.Context, id string) (*Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.regions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *stored
	return &cp, nil
}

func (m *memRegions) List(_ context.Context) ([]*Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Region
	for _, stored := range m.regions {
		cp := *stored
		out = append(out, &cp)
	}
	return out, nil
}

type memHospitals memStore

func (m *memHospitals) Create(_ context.Context, h *Hospital) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.hospitals {
		if existing.Code == h.Code || existing.Name == h.Name {
			return fmt.Errorf("%w: duplicate hospital", ErrConflict)
		}
	}
	cp := *h
	m.hospitals[h.ID] = &cp
	return nil
}

func (m *memHospitals) Find(_ context.Context, id string) (*Hospital, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.hospitals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *stored
	return &cp, nil
}

func (m *memHospitals) List(_ context.Context, scope Scope) ([]*Hospital, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Hospital
	for _, stored := range m.hospitals {
		if scope.PermitsHospital(stored) {
			cp := *stored
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memDevices memStore

func (m *memDevices) Create(_ context.Context, c *DeviceCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.devices {
		if existing.SensorID == c.SensorID {
			return fmt.Errorf("%w: sensor already has a key", ErrConflict)
		}
	}
	cp := *c
	m.devices[c.ID] = &cp
	return nil
}

func (m *memDevices) Find(_ context.Context, id string) (*DeviceCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *stored
	return &cp, nil
}

func (m *memDevices) FindBySecret(_ context.Context, secret string) (*DeviceCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stored := range m.devices {
		if stored.Secret == secret {
			cp := *stored
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memDevices) List(_ context.Context, scope Scope) ([]*DeviceCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*DeviceCredential
	for _, stored := range m.devices {
		hospital := m.hospitals[stored.HospitalID]
		if scope.PermitsHospital(hospital) {
			cp := *stored
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memDevices) SetValidated(_ context.Context, id string, validated bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.devices[id]
	if !ok {
		return ErrNotFound
	}
	stored.Validated = validated
	return nil
}

func (m *memDevices) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.devices[id]
	if !ok {
		return ErrNotFound
	}
	stored.Active = active
	return nil
}

func (m *memDevices) TouchLastUsed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.devices[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	stored.LastUsed = &now
	return nil
}

type memAllowed memStore

func (m *memAllowed) Create(_ context.Context, e *AllowedEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.allowed {
		if existing.Email == e.Email {
			return fmt.Errorf("%w: entry already whitelisted", ErrConflict)
		}
	}
	cp := *e
	m.allowed[e.ID] = &cp
	return nil
}

func (m *memAllowed) List(_ context.Context) ([]*AllowedEmail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*AllowedEmail
	for _, stored := range m.allowed {
		cp := *stored
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memAllowed) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.allowed[id]; !ok {
		return ErrNotFound
	}
	delete(m.allowed, id)
	return nil
}

type memAudit memStore

func (m *memAudit) Append(_ context.Context, rec *AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.audits = append(m.audits, &cp)
	return nil
}
