package httpapi

import (
	"errors"
	"net/http"

	"aquawatch.org/internal/auth"
	"aquawatch.org/internal/obs"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyTwoFactorRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type loginResponse struct {
	TwoFactorRequired bool           `json:"two_factor_required"`
	Tokens            *tokenResponse `json:"tokens,omitempty"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(id))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrLocked):
			obs.ObserveLogin("locked")
		default:
			obs.ObserveLogin("failure")
		}
		respondServiceError(w, err)
		return
	}
	if res.TwoFactorRequired {
		obs.ObserveLogin("2fa_required")
		writeJSON(w, http.StatusOK, loginResponse{TwoFactorRequired: true})
		return
	}
	obs.ObserveLogin("success")
	tokens := toTokenResponse(res.Tokens)
	writeJSON(w, http.StatusOK, loginResponse{Tokens: &tokens})
}

func (a *API) handleVerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req verifyTwoFactorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.svc.CompleteTwoFactor(r.Context(), req.Username, req.Code)
	if err != nil {
		obs.ObserveLogin("failure")
		respondServiceError(w, err)
		return
	}
	obs.ObserveLogin("success")
	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(p.Identity))
}

func (a *API) handleEnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	enrollment, err := a.svc.EnableTwoFactor(r.Context(), p)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	// The secret and QR are shown exactly once, at enrollment.
	writeJSON(w, http.StatusOK, map[string]string{
		"secret":           enrollment.Secret,
		"provisioning_uri": enrollment.ProvisioningURI,
		"qr_code":          enrollment.ProvisioningImage,
	})
}

func (a *API) handleDisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := a.svc.DisableTwoFactor(r.Context(), p); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
