package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/quantfort/riskgov/internal/domain/evolve"
	"github.com/quantfort/riskgov/internal/domain/flowstate"
	"github.com/quantfort/riskgov/internal/domain/governor"
	"github.com/quantfort/riskgov/internal/domain/guard"
	"github.com/quantfort/riskgov/internal/domain/packet"
	"github.com/quantfort/riskgov/internal/domain/regime"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var verr *governor.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, guard.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, guard.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, evolve.ErrInsufficientData):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleClassifyRegime(w http.ResponseWriter, r *http.Request) {
	var in regime.IndicatorReading
	if err := decode(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.eng.ClassifyRegime(in))
}

func (s *Server) handleComputeFlow(w http.ResponseWriter, r *http.Request) {
	var in flowstate.Input
	if err := decode(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if in.Symbol == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "symbol is required"})
		return
	}
	workspace := mux.Vars(r)["workspace"]
	writeJSON(w, http.StatusOK, s.eng.ComputeFlowState(workspace, in))
}

// evaluateRequest carries both halves of an evaluation: the session counters
// the snapshot is built from, and the candidate intent.
type evaluateRequest struct {
	Regime            regime.GovernorRegime    `json:"regime"`
	DataStatus        governor.DataStatus      `json:"data_status"`
	DataAgeSeconds    *float64                 `json:"data_age_seconds"`
	EventSeverity     governor.EventSeverity   `json:"event_severity"`
	RealizedDailyR    float64                  `json:"realized_daily_r"`
	OpenRiskR         float64                  `json:"open_risk_r"`
	ConsecutiveLosses int                      `json:"consecutive_losses"`
	Intent            governor.CandidateIntent `json:"intent"`
}

type evaluateResponse struct {
	Snapshot governor.PermissionSnapshot `json:"snapshot"`
	Decision governor.Decision           `json:"decision"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	workspace := mux.Vars(r)["workspace"]

	snap := s.eng.BuildSnapshot(r.Context(), workspace, governor.SnapshotParams{
		Regime:            req.Regime,
		DataStatus:        req.DataStatus,
		DataAgeSeconds:    req.DataAgeSeconds,
		EventSeverity:     req.EventSeverity,
		RealizedDailyR:    req.RealizedDailyR,
		OpenRiskR:         req.OpenRiskR,
		ConsecutiveLosses: req.ConsecutiveLosses,
	})

	dec, err := s.eng.EvaluateCandidate(snap, req.Intent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluateResponse{Snapshot: snap, Decision: dec})
}

func (s *Server) handleGuardState(w http.ResponseWriter, r *http.Request) {
	st, err := s.eng.GuardState(r.Context(), mux.Vars(r)["workspace"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGuardDisable(w http.ResponseWriter, r *http.Request) {
	st, err := s.eng.RequestGuardDisable(r.Context(), mux.Vars(r)["workspace"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGuardCancel(w http.ResponseWriter, r *http.Request) {
	st, err := s.eng.CancelGuardDisable(r.Context(), mux.Vars(r)["workspace"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGuardEnable(w http.ResponseWriter, r *http.Request) {
	st, err := s.eng.EnableGuard(r.Context(), mux.Vars(r)["workspace"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type evolveRequest struct {
	SymbolGroup string         `json:"symbol_group"`
	Cadence     evolve.Cadence `json:"cadence"`
}

func (s *Server) handleEvolve(w http.ResponseWriter, r *http.Request) {
	var req evolveRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	adj, err := s.eng.RunEvolutionCycle(r.Context(), evolve.Params{
		Workspace:   mux.Vars(r)["workspace"],
		SymbolGroup: req.SymbolGroup,
		Cadence:     req.Cadence,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, adj)
}

type fingerprintResponse struct {
	Fingerprint string `json:"fingerprint"`
}

func (s *Server) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	var in packet.FingerprintInput
	if err := decode(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, fingerprintResponse{Fingerprint: s.eng.Fingerprint(in)})
}

type weightsResponse struct {
	Weights         evolve.WeightVector `json:"weights"`
	ArmedConfidence float64             `json:"armed_confidence"`
}

func (s *Server) handleWeights(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, weightsResponse{
		Weights:         s.eng.Weights(),
		ArmedConfidence: s.eng.ArmedConfidence(),
	})
}
