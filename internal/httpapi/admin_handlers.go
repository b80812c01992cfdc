package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aquawatch.org/internal/auth"
)

type changeRoleRequest struct {
	Role int `json:"role"`
}

type assignScopeRequest struct {
	RegionID   *string `json:"region_id"`
	HospitalID *string `json:"hospital_id"`
}

type createRegionRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type createHospitalRequest struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	RegionID string `json:"region_id"`
	Address  string `json:"address"`
}

type createAPIKeyRequest struct {
	SensorID    string `json:"sensor_id"`
	HospitalID  string `json:"hospital_id"`
	Description string `json:"description"`
}

type addAllowedEmailRequest struct {
	Email string `json:"email"`
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	users, err := a.svc.ListIdentities(r.Context(), p)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req changeRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if err := a.svc.ChangeRole(r.Context(), p, chi.URLParam(r, "id"), role); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAssignScope(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req assignScopeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.AssignScope(r.Context(), p, chi.URLParam(r, "id"), req.RegionID, req.HospitalID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListRegions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	regions, err := a.svc.ListRegions(r.Context(), p)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	out := make([]regionResponse, 0, len(regions))
	for _, reg := range regions {
		out = append(out, regionResponse{ID: reg.ID, Name: reg.Name, Code: reg.Code, CreatedAt: reg.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleCreateRegion(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req createRegionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	region, err := a.svc.CreateRegion(r.Context(), p, req.Name, req.Code)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/admin/regions/%s", region.ID))
	writeJSON(w, http.StatusCreated, regionResponse{ID: region.ID, Name: region.Name, Code: region.Code, CreatedAt: region.CreatedAt})
}

func (a *API) handleListHospitals(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	hospitals, err := a.svc.ListHospitals(r.Context(), p)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	out := make([]hospitalResponse, 0, len(hospitals))
	for _, h := range hospitals {
		out = append(out, hospitalResponse{
			ID: h.ID, Name: h.Name, Code: h.Code, RegionID: h.RegionID,
			Address: h.Address, CreatedAt: h.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleCreateHospital(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req createHospitalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h, err := a.svc.CreateHospital(r.Context(), p, req.Name, req.Code, req.RegionID, req.Address)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/admin/hospitals/%s", h.ID))
	writeJSON(w, http.StatusCreated, hospitalResponse{
		ID: h.ID, Name: h.Name, Code: h.Code, RegionID: h.RegionID,
		Address: h.Address, CreatedAt: h.CreatedAt,
	})
}

func (a *API) handleListDeviceCredentials(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	creds, err := a.svc.ListDeviceCredentials(r.Context(), p)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	out := make([]deviceCredentialResponse, 0, len(creds))
	for _, c := range creds {
		out = append(out, toDeviceCredentialResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleCreateDeviceCredential(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req createAPIKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cred, err := a.svc.CreateDeviceCredential(r.Context(), p, req.SensorID, req.HospitalID, req.Description)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	// The only response that ever carries the secret.
	w.Header().Set("Location", fmt.Sprintf("/v1/admin/apikeys/%s", cred.ID))
	writeJSON(w, http.StatusCreated, toDeviceCredentialResponse(cred))
}

func (a *API) handleValidateDeviceCredential(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := a.svc.ValidateDeviceCredential(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRevokeDeviceCredential(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := a.svc.RevokeDeviceCredential(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListAllowedEmails(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	entries, err := a.svc.ListAllowedEmails(r.Context(), p)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	type entryResponse struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		CreatedBy string `json:"created_by,omitempty"`
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{ID: e.ID, Email: e.Email, CreatedBy: e.CreatedBy})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleAddAllowedEmail(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req addAllowedEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := a.svc.AddAllowedEmail(r.Context(), p, req.Email)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": entry.ID, "email": entry.Email})
}

func (a *API) handleRemoveAllowedEmail(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := a.svc.RemoveAllowedEmail(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
