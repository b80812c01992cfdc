package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"aquawatch.org/internal/auth"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

// respondServiceError maps the core's sentinel errors onto HTTP status
// codes. Unknown errors stay opaque.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrLocked):
		writeError(w, http.StatusLocked, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrConflict), errors.Is(err, auth.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type userResponse struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	TwoFAEnabled bool       `json:"twofa_enabled"`
	RegionID     *string    `json:"region_id,omitempty"`
	HospitalID   *string    `json:"hospital_id,omitempty"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toUserResponse(id *auth.Identity) userResponse {
	return userResponse{
		ID:           id.ID,
		Username:     id.Username,
		Email:        id.Email,
		Role:         id.Role.String(),
		TwoFAEnabled: id.TwoFAEnabled,
		RegionID:     id.RegionID,
		HospitalID:   id.HospitalID,
		LastLogin:    id.LastLogin,
		CreatedAt:    id.CreatedAt,
	}
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func toTokenResponse(pair auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "bearer",
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

type regionResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

type hospitalResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	RegionID  string    `json:"region_id"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type deviceCredentialResponse struct {
	ID          string     `json:"id"`
	Secret      string     `json:"secret,omitempty"`
	SensorID    string     `json:"sensor_id"`
	HospitalID  string     `json:"hospital_id"`
	Description string     `json:"description,omitempty"`
	Active      bool       `json:"active"`
	Validated   bool       `json:"validated"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
}

func toDeviceCredentialResponse(c *auth.DeviceCredential) deviceCredentialResponse {
	return deviceCredentialResponse{
		ID:          c.ID,
		Secret:      c.Secret,
		SensorID:    c.SensorID,
		HospitalID:  c.HospitalID,
		Description: c.Description,
		Active:      c.Active,
		Validated:   c.Validated,
		CreatedAt:   c.CreatedAt,
		LastUsed:    c.LastUsed,
	}
}
