// Package http exposes the contract coordination API over JSON HTTP.
package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/renteasy/renteasy/internal/app"
	"github.com/renteasy/renteasy/internal/auth"
	apperrors "github.com/renteasy/renteasy/internal/platform/errors"
	"github.com/renteasy/renteasy/internal/signing"
)

// Server serves the JSON API.
type Server struct {
	contracts *app.ContractService
	invites   *app.InviteService
	signer    *signing.Coordinator
	verifier  auth.Verifier
	logger    *zap.Logger
	gatherer  prometheus.Gatherer
}

// Config wires the API server's dependencies.
type Config struct {
	Contracts *app.ContractService
	Invites   *app.InviteService
	Signer    *signing.Coordinator
	Verifier  auth.Verifier
	Logger    *zap.Logger
	// Gatherer backs the /metrics endpoint. Nil falls back to the default
	// global gatherer.
	Gatherer prometheus.Gatherer
}

// NewServer creates the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Contracts == nil {
		return nil, fmt.Errorf("contract service is required")
	}
	if cfg.Invites == nil {
		return nil, fmt.Errorf("invite service is required")
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("signing coordinator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		contracts: cfg.Contracts,
		invites:   cfg.Invites,
		signer:    cfg.Signer,
		verifier:  cfg.Verifier,
		logger:    cfg.Logger,
		gatherer:  cfg.Gatherer,
	}, nil
}

// Routes wires all API routes into a mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/contracts", s.handleCreateContract)
	mux.HandleFunc("GET /api/contracts", s.handleListContracts)
	mux.HandleFunc("GET /api/contracts/{id}", s.handleGetContract)
	mux.HandleFunc("DELETE /api/contracts/{id}", s.handleDeleteContract)
	mux.HandleFunc("POST /api/contracts/{id}/invites", s.handleCreateInvite)
	mux.HandleFunc("GET /api/invites/{token}", s.handleResolveInvite)
	mux.HandleFunc("POST /api/invites/{token}/redeem", s.handleRedeemInvite)
	mux.HandleFunc("POST /api/contracts/{id}/sign", s.handleStartSigning)
	mux.HandleFunc("GET /api/signing/{orderRef}", s.handlePollSigning)
	mux.HandleFunc("DELETE /api/signing/{orderRef}", s.handleCancelSigning)
	mux.HandleFunc("POST /api/contracts/{id}/confirm", s.handleConfirmSignature)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// identity extracts the authenticated caller from the bearer token.
func (s *Server) identity(r *http.Request) (auth.Identity, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return auth.Identity{}, apperrors.New(apperrors.CodeUnauthenticated, "authorization header is required")
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return auth.Identity{}, apperrors.New(apperrors.CodeUnauthenticated, "authorization scheme must be Bearer")
	}
	return s.verifier.Verify(token)
}

// optionalIdentity returns nil for requests without an Authorization header.
// A present but invalid token is still an error.
func (s *Server) optionalIdentity(r *http.Request) (*auth.Identity, error) {
	if strings.TrimSpace(r.Header.Get("Authorization")) == "" {
		return nil, nil
	}
	identity, err := s.identity(r)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders a domain error as status + {code, message}. Unknown
// errors become opaque 500s; their detail stays in the logs.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := code.HTTPStatus()
	message := "internal error"
	if code != apperrors.CodeUnknown {
		message = err.Error()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorBody{Code: string(code), Message: message})
}

func decodeBody(r *http.Request, into any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return apperrors.New(apperrors.CodeRequestInvalid, "request body is malformed")
	}
	return nil
}
