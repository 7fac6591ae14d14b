package capa

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/HerbHall/capa/internal/detect"
	"github.com/HerbHall/capa/pkg/anomaly"
	"github.com/HerbHall/capa/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/detect", Handler: m.handleDetect, Detection: true},
		{Method: "GET", Path: "/defaults", Handler: m.handleDefaults},
	}
}

// handleDetect runs one detection over the posted series.
//
//	@Summary		Detect anomalies
//	@Description	Finds collective and point anomalies in a series. Omitted penalties default to 4·ln(n) per collective length and 3·ln(n) per point anomaly.
//	@Tags			capa
//	@Accept			json
//	@Produce		json
//	@Param			request body anomaly.DetectRequest true "Series and detection settings"
//	@Success		200 {object} anomaly.DetectResponse
//	@Failure		400 {object} map[string]any
//	@Failure		413 {object} map[string]any
//	@Failure		422 {object} map[string]any
//	@Failure		429 {object} map[string]any
//	@Failure		500 {object} map[string]any
//	@Failure		503 {object} map[string]any
//	@Router			/capa/detect [post]
func (m *Module) handleDetect(w http.ResponseWriter, r *http.Request) {
	req, err := DecodeRequest(w, r, m.cfg.MaxBodyBytes)
	if err != nil {
		writeError(w, StatusFor(err), err.Error())
		return
	}

	resp, err := m.detector.Detect(r.Context(), req, nil)
	if err != nil {
		writeError(w, StatusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDefaults reports the defaults applied to omitted request fields.
//
//	@Summary		Detection defaults
//	@Description	Returns the defaults and limits applied to detection requests.
//	@Tags			capa
//	@Produce		json
//	@Success		200 {object} anomaly.DefaultsResponse
//	@Router			/capa/defaults [get]
func (m *Module) handleDefaults(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, anomaly.DefaultsResponse{
		MinLength:       m.cfg.MinLength,
		MaxLength:       m.cfg.MaxLength,
		Threshold:       m.cfg.Threshold,
		Tolerance:       m.cfg.Tolerance,
		MaxIterations:   m.cfg.MaxIterations,
		MaxSeriesLength: m.cfg.MaxSeriesLength,
		Transform:       m.cfg.Transform,
		BetaFormula:     "4*ln(n)",
		BetaAnomalyForm: "3*ln(n)",
	})
}

// errBadBody reports a request body that is not a valid DetectRequest.
var errBadBody = fmt.Errorf("%w: malformed request body", detect.ErrInvalidConfig)

// DecodeRequest reads a DetectRequest from r, rejecting bodies larger than
// limit and unknown fields.
func DecodeRequest(w http.ResponseWriter, r *http.Request, limit int64) (anomaly.DetectRequest, error) {
	var req anomaly.DetectRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, fmt.Errorf("%w: request body exceeds %d bytes", detect.ErrResource, limit)
		}
		return req, fmt.Errorf("%w: %v", errBadBody, err)
	}
	return req, nil
}

// StatusFor maps a detection error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, detect.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, detect.ErrResource):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, detect.ErrNumeric):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   problemType(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

// problemType derives an RFC 7807 type URI from the status text, e.g.
// "/problems/unprocessable-entity".
func problemType(status int) string {
	return "/problems/" + strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "-"))
}
