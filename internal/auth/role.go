package auth

import "fmt"

// Role is a closed enumeration of account tiers. The wire values 1..4
// are a storage detail inherited from the original schema; they do not
// form a privilege ladder (Admin sits at 2 yet outranks everyone), so
// roles are never compared by magnitude. Capability questions go
// through the explicit methods below.
type Role int

const (
	// RolePending is a freshly registered account awaiting admin approval.
	RolePending Role = 1
	// RoleAdmin has unrestricted access to every region and hospital.
	RoleAdmin Role = 2
	// RoleRegionAdmin manages a single region and everything inside it.
	RoleRegionAdmin Role = 3
	// RoleHospitalUser sees a single hospital.
	RoleHospitalUser Role = 4
)

// ParseRole validates a stored or submitted wire value.
func ParseRole(v int) (Role, error) {
	switch Role(v) {
	case RolePending, RoleAdmin, RoleRegionAdmin, RoleHospitalUser:
		return Role(v), nil
	default:
		return 0, fmt.Errorf("%w: unknown role %d", ErrInvalidInput, v)
	}
}

func (r Role) String() string {
	switch r {
	case RolePending:
		return "pending"
	case RoleAdmin:
		return "admin"
	case RoleRegionAdmin:
		return "region_admin"
	case RoleHospitalUser:
		return "hospital_user"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// BypassesScoping reports whether the role sees all data unrestricted.
func (r Role) BypassesScoping() bool { return r == RoleAdmin }

// RequiresRegion reports whether the role cannot operate without a
// region assignment.
func (r Role) RequiresRegion() bool { return r == RoleRegionAdmin }

// RequiresHospital reports whether the role cannot operate without a
// hospital assignment.
func (r Role) RequiresHospital() bool { return r == RoleHospitalUser }

// CanAdminister reports whether the role may use the admin surface at all.
func (r Role) CanAdminister() bool { return r == RoleAdmin }

// CanManageUsers reports whether the role may list or assign users
// within its scope.
func (r Role) CanManageUsers() bool { return r == RoleAdmin || r == RoleRegionAdmin }
