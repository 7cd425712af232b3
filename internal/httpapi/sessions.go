package httpapi

import (
	"context"
	"errors"
	"net/http"

	"b3tr-store/internal/checkout"
	"b3tr-store/internal/domain"
	"b3tr-store/internal/repository"

	log "github.com/sirupsen/logrus"
)

type Sessions interface {
	Create(ctx context.Context, account string) (*checkout.Session, error)
	Get(id string) (*checkout.Session, error)
	Delete(id string) error
}

type SessionsHandler struct {
	sessions Sessions
}

type accountRequest struct {
	Account string `json:"account"`
}

type selectRequest struct {
	ProductID int `json:"product_id"`
}

type decisionJSON struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

type sessionResponse struct {
	Decision *decisionJSON `json:"decision,omitempty"`
	Session  checkout.View `json:"session"`
}

type sessionErrorResponse struct {
	Error   string        `json:"error"`
	Session checkout.View `json:"session"`
}

func newDecisionJSON(d checkout.Decision) *decisionJSON {
	return &decisionJSON{Outcome: d.Outcome.String(), Reason: d.Reason}
}

func RegisterSessions(mux *http.ServeMux, sessions Sessions) {
	h := SessionsHandler{sessions: sessions}
	mux.HandleFunc("POST /v1/sessions", instrument("sessions", h.Create))
	mux.HandleFunc("GET /v1/sessions/{id}", instrument("session", h.Get))
	mux.HandleFunc("DELETE /v1/sessions/{id}", instrument("session", h.Delete))
	mux.HandleFunc("POST /v1/sessions/{id}/wallet", instrument("session_wallet", h.Connect))
	mux.HandleFunc("DELETE /v1/sessions/{id}/wallet", instrument("session_wallet", h.Disconnect))
	mux.HandleFunc("GET /v1/sessions/{id}/balance", instrument("session_balance", h.Balance))
	mux.HandleFunc("POST /v1/sessions/{id}/purchase", instrument("session_purchase", h.Select))
	mux.HandleFunc("DELETE /v1/sessions/{id}/purchase", instrument("session_purchase", h.Cancel))
	mux.HandleFunc("POST /v1/sessions/{id}/purchase/confirm", instrument("session_confirm", h.Confirm))
}

func (h SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON data")
		return
	}

	s, err := h.sessions.Create(r.Context(), req.Account)
	if err != nil {
		if errors.Is(err, checkout.ErrInvalidAccount) {
			writeError(w, http.StatusBadRequest, checkout.ErrInvalidAccount.Error())
			return
		}
		log.WithField("op", "SessionsHandler.Create").WithError(err).Error("Failed to create session")
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Session: s.View()})
}

func (h SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: s.View()})
}

func (h SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, checkout.ErrSessionNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SessionsHandler) Connect(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req accountRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON data")
		return
	}

	d, err := s.Connect(r.Context(), req.Account)
	if err != nil {
		h.sessionError(w, s, err)
		return
	}
	resp := sessionResponse{Session: s.View()}
	if d != nil {
		resp.Decision = newDecisionJSON(*d)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h SessionsHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.Disconnect()
	writeJSON(w, http.StatusOK, sessionResponse{Session: s.View()})
}

func (h SessionsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	b, err := s.Balance(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, b)
	case errors.Is(err, checkout.ErrWalletNotConnected):
		writeError(w, http.StatusConflict, "wallet not connected")
	case errors.Is(err, checkout.ErrSessionClosed):
		writeError(w, http.StatusNotFound, checkout.ErrSessionNotFound.Error())
	default:
		log.WithFields(log.Fields{"op": "SessionsHandler.Balance", "session_id": s.ID}).WithError(err).Error("Failed to fetch balances")
		writeError(w, http.StatusBadGateway, "Failed to fetch balances. Please try again.")
	}
}

func (h SessionsHandler) Select(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON data")
		return
	}

	d, err := s.Select(r.Context(), req.ProductID)
	if err != nil {
		h.sessionError(w, s, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Decision: newDecisionJSON(d), Session: s.View()})
}

func (h SessionsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var buyer domain.Buyer
	if err := decodeJSON(r, &buyer, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON data")
		return
	}

	if err := s.Confirm(r.Context(), buyer); err != nil {
		h.sessionError(w, s, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sessionResponse{Session: s.View()})
}

func (h SessionsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.Cancel()
	writeJSON(w, http.StatusOK, sessionResponse{Session: s.View()})
}

func (h SessionsHandler) lookup(w http.ResponseWriter, r *http.Request) (*checkout.Session, bool) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, checkout.ErrSessionNotFound.Error())
		return nil, false
	}
	return s, true
}

// sessionError maps a session event failure to a status. The body carries
// the session view so the client can show its status line.
func (h SessionsHandler) sessionError(w http.ResponseWriter, s *checkout.Session, err error) {
	v := s.View()
	status := http.StatusBadGateway
	msg := v.Status

	switch {
	case errors.Is(err, checkout.ErrInvalidAccount):
		status, msg = http.StatusBadRequest, checkout.ErrInvalidAccount.Error()
	case errors.Is(err, repository.ErrNotFound):
		status, msg = http.StatusNotFound, "product not found"
	case errors.Is(err, checkout.ErrInvalidBuyer):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrAttemptInProgress),
		errors.Is(err, checkout.ErrNoActiveAttempt),
		errors.Is(err, checkout.ErrWalletNotConnected):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, checkout.ErrSessionClosed):
		status, msg = http.StatusNotFound, checkout.ErrSessionNotFound.Error()
	default:
		log.WithFields(log.Fields{"op": "SessionsHandler", "session_id": s.ID}).WithError(err).Warn("Session event failed")
	}
	if msg == "" {
		msg = err.Error()
	}
	writeJSON(w, status, sessionErrorResponse{Error: msg, Session: v})
}
