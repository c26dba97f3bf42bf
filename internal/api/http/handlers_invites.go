package http

import (
	"net/http"

	"github.com/renteasy/renteasy/internal/contract"
	"github.com/renteasy/renteasy/internal/contract/invite"
)

type createInviteRequest struct {
	Role  string `json:"role"`
	Email string `json:"email"`
}

func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req createInviteRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.invites.CreateInvite(r.Context(), identity, invite.CreateInviteInput{
		ContractID: r.PathValue("id"),
		Role:       contract.RoleFromLabel(req.Role),
		Email:      req.Email,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleResolveInvite(w http.ResponseWriter, r *http.Request) {
	identity, err := s.optionalIdentity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resolved, err := s.invites.ResolveInvite(r.Context(), identity, r.PathValue("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func (s *Server) handleRedeemInvite(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.invites.RedeemInvite(r.Context(), identity, r.PathValue("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
