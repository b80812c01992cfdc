package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Identities() IdentityStore               { return &identityStore{db: s.db} }
func (s *PGStore) Regions() RegionStore                    { return &regionStore{db: s.db} }
func (s *PGStore) Hospitals() HospitalStore                { return &hospitalStore{db: s.db} }
func (s *PGStore) DeviceCredentials() DeviceCredentialStore { return &deviceStore{db: s.db} }
func (s *PGStore) AllowedEmails() AllowedEmailStore        { return &allowedEmailStore{db: s.db} }
func (s *PGStore) Audit() AuditStore                       { return &auditStore{db: s.db} }

// translateErr maps driver errors onto the package sentinels.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

// Identity store -----------------------------------------------------------
type identityStore struct{ db *sql.DB }

const identityColumns = `id, username, email, password_hash, totp_secret, twofa_enabled,
	failed_login_attempts, locked_until, last_login, role, region_id, hospital_id,
	created_at, updated_at`

func scanIdentity(row interface{ Scan(...any) error }) (*Identity, error) {
	var (
		id         Identity
		totpSecret sql.NullString
		role       int
	)
	err := row.Scan(&id.ID, &id.Username, &id.Email, &id.PasswordHash, &totpSecret, &id.TwoFAEnabled,
		&id.FailedLoginAttempts, &id.LockedUntil, &id.LastLogin, &role, &id.RegionID, &id.HospitalID,
		&id.CreatedAt, &id.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	id.TOTPSecret = totpSecret.String
	id.Role = Role(role)
	return &id, nil
}

func (s *identityStore) Create(ctx context.Context, id *Identity) error {
	_, err := s.db.ExecContext(ctx,
		`insert into identities(id, username, email, password_hash, role) values($1,$2,$3,$4,$5)`,
		id.ID, id.Username, id.Email, id.PasswordHash, int(id.Role),
	)
	return translateErr(err)
}

func (s *identityStore) Find(ctx context.Context, id string) (*Identity, error) {
	return scanIdentity(s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where id=$1`, id))
}

func (s *identityStore) FindByUsername(ctx context.Context, username string) (*Identity, error) {
	return scanIdentity(s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where username=$1`, username))
}

func (s *identityStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	return scanIdentity(s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where email=$1`, email))
}

func (s *identityStore) List(ctx context.Context, scope Scope) ([]*Identity, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch scope.Kind {
	case ScopeAll:
		rows, err = s.db.QueryContext(ctx,
			`select `+identityColumns+` from identities order by created_at`)
	case ScopeRegion:
		rows, err = s.db.QueryContext(ctx,
			`select `+identityColumns+` from identities
			 where region_id=$1
			    or hospital_id in (select id from hospitals where region_id=$1)
			 order by created_at`, scope.RegionID)
	case ScopeHospital:
		rows, err = s.db.QueryContext(ctx,
			`select `+identityColumns+` from identities where hospital_id=$1 order by created_at`,
			scope.HospitalID)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *identityStore) UpdateLoginState(ctx context.Context, id *Identity) error {
	_, err := s.db.ExecContext(ctx,
		`update identities
		 set failed_login_attempts=$2, locked_until=$3, last_login=$4, updated_at=now()
		 where id=$1`,
		id.ID, id.FailedLoginAttempts, id.LockedUntil, id.LastLogin,
	)
	return translateErr(err)
}

func (s *identityStore) UpdateTwoFactor(ctx context.Context, id *Identity) error {
	secret := sql.NullString{String: id.TOTPSecret, Valid: id.TOTPSecret != ""}
	_, err := s.db.ExecContext(ctx,
		`update identities set totp_secret=$2, twofa_enabled=$3, updated_at=now() where id=$1`,
		id.ID, secret, id.TwoFAEnabled,
	)
	return translateErr(err)
}

func (s *identityStore) UpdateRole(ctx context.Context, userID string, role Role) error {
	res, err := s.db.ExecContext(ctx,
		`update identities set role=$2, updated_at=now() where id=$1`, userID, int(role))
	if err != nil {
		return translateErr(err)
	}
	return requireRow(res)
}

func (s *identityStore) UpdateAssignment(ctx context.Context, userID string, regionID, hospitalID *string) error {
	res, err := s.db.ExecContext(ctx,
		`update identities set region_id=$2, hospital_id=$3, updated_at=now() where id=$1`,
		userID, regionID, hospitalID)
	if err != nil {
		return translateErr(err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Region store -------------------------------------------------------------
type regionStore struct{ db *sql.DB }

func (s *regionStore) Create(ctx context.Context, r *Region) error {
	_, err := s.db.ExecContext(ctx,
		`insert into regions(id, name, code) values($1,$2,$3)`, r.ID, r.Name, r.Code)
	return translateErr(err)
}

func (s *regionStore) Find(ctx context.Context, id string) (*Region, error) {
	var r Region
	err := s.db.QueryRowContext(ctx,
		`select id, name, code, created_at from regions where id=$1`, id,
	).Scan(&r.ID, &r.Name, &r.Code, &r.CreatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &r, nil
}

func (s *regionStore) List(ctx context.Context) ([]*Region, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, code, created_at from regions order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Region
	for rows.Next() {
		var r Region
		if err := rows.Scan(&r.ID, &r.Name, &r.Code, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Hospital store -----------------------------------------------------------
type hospitalStore struct{ db *sql.DB }

func (s *hospitalStore) Create(ctx context.Context, h *Hospital) error {
	_, err := s.db.ExecContext(ctx,
		`insert into hospitals(id, name, code, region_id, address) values($1,$2,$3,$4,$5)`,
		h.ID, h.Name, h.Code, h.RegionID, h.Address)
	return translateErr(err)
}

func (s *hospitalStore) Find(ctx context.Context, id string) (*Hospital, error) {
	var h Hospital
	err := s.db.QueryRowContext(ctx,
		`select id, name, code, region_id, address, created_at from hospitals where id=$1`, id,
	).Scan(&h.ID, &h.Name, &h.Code, &h.RegionID, &h.Address, &h.CreatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &h, nil
}

func (s *hospitalStore) List(ctx context.Context, scope Scope) ([]*Hospital, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch scope.Kind {
	case ScopeAll:
		rows, err = s.db.QueryContext(ctx,
			`select id, name, code, region_id, address, created_at from hospitals order by created_at`)
	case ScopeRegion:
		rows, err = s.db.QueryContext(ctx,
			`select id, name, code, region_id, address, created_at from hospitals where region_id=$1 order by created_at`,
			scope.RegionID)
	case ScopeHospital:
		rows, err = s.db.QueryContext(ctx,
			`select id, name, code, region_id, address, created_at from hospitals where id=$1`,
			scope.HospitalID)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Hospital
	for rows.Next() {
		var h Hospital
		if err := rows.Scan(&h.ID, &h.Name, &h.Code, &h.RegionID, &h.Address, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

// Device credential store --------------------------------------------------
type deviceStore struct{ db *sql.DB }

const deviceColumns = `id, secret, sensor_id, hospital_id, description, active, validated, created_at, last_used`

func scanDevice(row interface{ Scan(...any) error }) (*DeviceCredential, error) {
	var c DeviceCredential
	err := row.Scan(&c.ID, &c.Secret, &c.SensorID, &c.HospitalID, &c.Description,
		&c.Active, &c.Validated, &c.CreatedAt, &c.LastUsed)
	if err != nil {
		return nil, translateErr(err)
	}
	return &c, nil
}

func (s *deviceStore) Create(ctx context.Context, c *DeviceCredential) error {
	_, err := s.db.ExecContext(ctx,
		`insert into device_credentials(id, secret, sensor_id, hospital_id, description, active, validated)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.Secret, c.SensorID, c.HospitalID, c.Description, c.Active, c.Validated)
	return translateErr(err)
}

func (s *deviceStore) Find(ctx context.Context, id string) (*DeviceCredential, error) {
	return scanDevice(s.db.QueryRowContext(ctx,
		`select `+deviceColumns+` from device_credentials where id=$1`, id))
}

func (s *deviceStore) FindBySecret(ctx context.Context, secret string) (*DeviceCredential, error) {
	return scanDevice(s.db.QueryRowContext(ctx,
		`select `+deviceColumns+` from device_credentials where secret=$1`, secret))
}

func (s *deviceStore) List(ctx context.Context, scope Scope) ([]*DeviceCredential, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch scope.Kind {
	case ScopeAll:
		rows, err = s.db.QueryContext(ctx,
			`select `+deviceColumns+` from device_credentials order by created_at`)
	case ScopeRegion:
		rows, err = s.db.QueryContext(ctx,
			`select `+deviceColumns+` from device_credentials
			 where hospital_id in (select id from hospitals where region_id=$1)
			 order by created_at`, scope.RegionID)
	case ScopeHospital:
		rows, err = s.db.QueryContext(ctx,
			`select `+deviceColumns+` from device_credentials where hospital_id=$1 order by created_at`,
			scope.HospitalID)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*DeviceCredential
	for rows.Next() {
		c, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *deviceStore) SetValidated(ctx context.Context, id string, validated bool) error {
	res, err := s.db.ExecContext(ctx,
		`update device_credentials set validated=$2 where id=$1`, id, validated)
	if err != nil {
		return translateErr(err)
	}
	return requireRow(res)
}

func (s *deviceStore) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`update device_credentials set active=$2 where id=$1`, id, active)
	if err != nil {
		return translateErr(err)
	}
	return requireRow(res)
}

func (s *deviceStore) TouchLastUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`update device_credentials set last_used=now() where id=$1`, id)
	return translateErr(err)
}

// Allowed email store ------------------------------------------------------
type allowedEmailStore struct{ db *sql.DB }

func (s *allowedEmailStore) Create(ctx context.Context, e *AllowedEmail) error {
	createdBy := sql.NullString{String: e.CreatedBy, Valid: e.CreatedBy != ""}
	_, err := s.db.ExecContext(ctx,
		`insert into allowed_emails(id, email, created_by) values($1,$2,$3)`,
		e.ID, e.Email, createdBy)
	return translateErr(err)
}

func (s *allowedEmailStore) List(ctx context.Context) ([]*AllowedEmail, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, email, coalesce(created_by, ''), created_at from allowed_emails order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AllowedEmail
	for rows.Next() {
		var e AllowedEmail
		if err := rows.Scan(&e.ID, &e.Email, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *allowedEmailStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from allowed_emails where id=$1`, id)
	if err != nil {
		return translateErr(err)
	}
	return requireRow(res)
}

// Audit store --------------------------------------------------------------
type auditStore struct{ db *sql.DB }

func (s *auditStore) Append(ctx context.Context, rec *AuditRecord) error {
	details, _ := json.Marshal(rec.Details)
	actorID := sql.NullString{String: rec.ActorID, Valid: rec.ActorID != ""}
	_, err := s.db.ExecContext(ctx,
		`insert into audit_log(id, occurred_at, actor_id, actor_name, action, resource_type, resource_id, details, ip_address, user_agent, outcome)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rec.ID, rec.OccurredAt, actorID, rec.ActorName, rec.Action,
		rec.ResourceType, rec.ResourceID, details, rec.IPAddress, rec.UserAgent, rec.Outcome,
	)
	return translateErr(err)
}
