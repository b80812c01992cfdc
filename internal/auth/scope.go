package auth

import "fmt"

// ScopeKind enumerates the data-visibility tiers.
type ScopeKind int

const (
	// ScopeAll sees everything (Admin).
	ScopeAll ScopeKind = iota
	// ScopeRegion sees one region and the hospitals inside it.
	ScopeRegion
	// ScopeHospital sees a single hospital.
	ScopeHospital
	// ScopeNone sees nothing (Pending).
	ScopeNone
)

// Scope is the visibility predicate derived from a caller's role and
// assignment. It is a pure value: data-access collaborators apply it to
// every query they build.
type Scope struct {
	Kind       ScopeKind
	RegionID   string
	HospitalID string
}

// ScopeFor maps (role, region, hospital) to a predicate. RegionAdmins
// without a region and HospitalUsers without a hospital fail with
// ErrInvalidState rather than silently widening.
func ScopeFor(id *Identity) (Scope, error) {
	switch {
	case id.Role.BypassesScoping():
		return Scope{Kind: ScopeAll}, nil
	case id.Role.RequiresRegion():
		if id.RegionID == nil || *id.RegionID == "" {
			return Scope{}, fmt.Errorf("%w: region admin %s has no region assigned", ErrInvalidState, id.Username)
		}
		return Scope{Kind: ScopeRegion, RegionID: *id.RegionID}, nil
	case id.Role.RequiresHospital():
		if id.HospitalID == nil || *id.HospitalID == "" {
			return Scope{}, fmt.Errorf("%w: hospital user %s has no hospital assigned", ErrInvalidState, id.Username)
		}
		return Scope{Kind: ScopeHospital, HospitalID: *id.HospitalID}, nil
	default:
		return Scope{Kind: ScopeNone}, nil
	}
}

// PermitsRegion reports whether resources in the given region are visible.
func (s Scope) PermitsRegion(regionID string) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeRegion:
		return regionID != "" && regionID == s.RegionID
	default:
		return false
	}
}

// PermitsHospital reports whether the given hospital is visible. The
// hospital's region covers the ScopeRegion case.
func (s Scope) PermitsHospital(h *Hospital) bool {
	if h == nil {
		return false
	}
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeRegion:
		return h.RegionID == s.RegionID
	case ScopeHospital:
		return h.ID == s.HospitalID
	default:
		return false
	}
}

// PermitsIdentity reports whether another account is visible: directly
// by region, or through the hospital it is assigned to.
func (s Scope) PermitsIdentity(target *Identity, targetHospital *Hospital) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeRegion:
		if target.RegionID != nil && *target.RegionID == s.RegionID {
			return true
		}
		return targetHospital != nil && targetHospital.RegionID == s.RegionID
	case ScopeHospital:
		return target.HospitalID != nil && *target.HospitalID == s.HospitalID
	default:
		return false
	}
}

// CheckAssignment enforces the write invariant on region/hospital
// fields: when both are supplied the hospital must belong to that
// region.
func CheckAssignment(regionID *string, hospital *Hospital) error {
	if hospital == nil || regionID == nil || *regionID == "" {
		return nil
	}
	if hospital.RegionID != *regionID {
		return fmt.Errorf("%w: hospital %s does not belong to region %s", ErrInvalidInput, hospital.ID, *regionID)
	}
	return nil
}
