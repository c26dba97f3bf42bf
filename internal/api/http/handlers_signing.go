package http

import (
	"net/http"

	"github.com/renteasy/renteasy/internal/signing"
)

type sessionResponse struct {
	OrderRef   string `json:"orderRef"`
	ContractID string `json:"contractId"`
	State      string `json:"state"`
}

func sessionView(session signing.Session) sessionResponse {
	return sessionResponse{
		OrderRef:   session.OrderRef,
		ContractID: session.ContractID,
		State:      string(session.State),
	}
}

func (s *Server) handleStartSigning(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.signer.Start(r.Context(), r.PathValue("id"), identity.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sessionView(session))
}

func (s *Server) handlePollSigning(w http.ResponseWriter, r *http.Request) {
	if _, err := s.identity(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.signer.PollOnce(r.Context(), r.PathValue("orderRef"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session))
}

func (s *Server) handleCancelSigning(w http.ResponseWriter, r *http.Request) {
	if _, err := s.identity(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.signer.Cancel(r.PathValue("orderRef")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
