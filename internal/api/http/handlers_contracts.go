package http

import (
	"net/http"
	"time"

	"github.com/renteasy/renteasy/internal/contract"
	apperrors "github.com/renteasy/renteasy/internal/platform/errors"
)

const dateLayout = "2006-01-02"

type createContractRequest struct {
	Address   string `json:"address"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Rent      int64  `json:"rent"`
	Deposit   *int64 `json:"deposit"`
	Role      string `json:"role"`
}

func (s *Server) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req createContractRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.contracts.Create(r.Context(), identity, input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (req createContractRequest) toInput() (contract.CreateContractInput, error) {
	start, err := parseDate(req.StartDate)
	if err != nil {
		return contract.CreateContractInput{}, err
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return contract.CreateContractInput{}, err
	}
	return contract.CreateContractInput{
		Address:     req.Address,
		StartDate:   start,
		EndDate:     end,
		Rent:        req.Rent,
		Deposit:     req.Deposit,
		CreatorRole: contract.RoleFromLabel(req.Role),
	}, nil
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, apperrors.New(apperrors.CodeContractPeriodInvalid, "dates must use YYYY-MM-DD")
	}
	return parsed.UTC(), nil
}

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.contracts.List(r.Context(), identity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.contracts.Get(r.Context(), identity, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteContract(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.contracts.Delete(r.Context(), identity, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleConfirmSignature is the direct confirm path: it records the caller's
// signature without a provider round trip.
func (s *Server) handleConfirmSignature(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.contracts.RecordPartySignature(r.Context(), identity, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"alreadySigned": result.AlreadySigned,
		"bothSigned":    result.BothSigned,
	})
}
