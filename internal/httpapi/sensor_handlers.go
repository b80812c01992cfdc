package httpapi

import (
	"net/http"
	"strings"
	"time"

	"aquawatch.org/internal/obs"
)

type ingestRequest struct {
	SensorID   string             `json:"sensor_id"`
	RecordedAt *time.Time         `json:"recorded_at"`
	Readings   map[string]float64 `json:"readings"`
}

// handleSensorIngest authenticates a sensor via X-API-Key and
// acknowledges the reading. Measurement storage lives in a separate
// pipeline; this endpoint only guards the door and stamps key usage.
func (a *API) handleSensorIngest(w http.ResponseWriter, r *http.Request) {
	secret := strings.TrimSpace(r.Header.Get("X-API-Key"))
	cred, err := a.svc.AuthorizeDevice(r.Context(), secret)
	if err != nil {
		obs.ObserveDeviceAuth("failure")
		respondServiceError(w, err)
		return
	}

	var req ingestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// A key only speaks for the sensor it was issued to.
	if req.SensorID != "" && req.SensorID != cred.SensorID {
		obs.ObserveDeviceAuth("sensor_mismatch")
		writeError(w, http.StatusForbidden, "api key does not match sensor_id")
		return
	}

	obs.ObserveDeviceAuth("success")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":      "accepted",
		"sensor_id":   cred.SensorID,
		"hospital_id": cred.HospitalID,
	})
}
