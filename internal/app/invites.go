package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/renteasy/renteasy/internal/auth"
	"github.com/renteasy/renteasy/internal/contract"
	"github.com/renteasy/renteasy/internal/contract/invite"
	apperrors "github.com/renteasy/renteasy/internal/platform/errors"
	"github.com/renteasy/renteasy/internal/platform/id"
	"github.com/renteasy/renteasy/internal/platform/metrics"
	"github.com/renteasy/renteasy/internal/storage"
)

// InviteView is the invite state returned to the issuer.
type InviteView struct {
	Token      string `json:"token"`
	URL        string `json:"url"`
	ContractID string `json:"contractId"`
	Role       string `json:"role"`
	Email      string `json:"email,omitempty"`
	Redeemed   bool   `json:"redeemed"`
}

// ResolvedInvite is the two-tier disclosure result of resolving a token.
//
// Anonymous callers see only the reduced fields; authenticated callers
// additionally get their relationship to the invite and the contract view,
// so a prospective redeemer can read the terms before accepting.
type ResolvedInvite struct {
	Token        string        `json:"token"`
	ContractID   string        `json:"contractId"`
	Role         string        `json:"role"`
	InviterName  string        `json:"inviterName"`
	Redeemed     bool          `json:"redeemed"`
	Relationship string        `json:"relationship,omitempty"`
	Contract     *ContractView `json:"contract,omitempty"`
}

// InviteService issues, resolves, and redeems invite tokens.
type InviteService struct {
	store    storage.Store
	logger   *zap.Logger
	metrics  *metrics.Metrics
	baseURL  string
	now      func() time.Time
	newToken func() (string, error)
}

// NewInviteService creates an invite service. baseURL is the public origin
// used to render shareable invite links.
func NewInviteService(store storage.Store, logger *zap.Logger, m *metrics.Metrics, baseURL string) (*InviteService, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	return &InviteService{
		store:    store,
		logger:   nopLogger(logger),
		metrics:  m,
		baseURL:  strings.TrimSpace(baseURL),
		now:      time.Now,
		newToken: id.NewInviteToken,
	}, nil
}

// CreateInvite issues an invite for the vacant role. Issuance is idempotent:
// an unredeemed invite for the same role is returned instead of a new one.
func (s *InviteService) CreateInvite(ctx context.Context, identity auth.Identity, input invite.CreateInviteInput) (InviteView, error) {
	ctx, span := tracer().Start(ctx, "InviteService.CreateInvite")
	defer span.End()

	if identity.UserID == "" {
		return InviteView{}, apperrors.New(apperrors.CodeUnauthenticated, "caller must be authenticated")
	}
	input.CreatedByUserID = identity.UserID

	c, parties, err := s.loadContract(ctx, input.ContractID)
	if err != nil {
		return InviteView{}, err
	}
	if err := invite.IssueGuard(c, parties, identity.UserID, input.Role); err != nil {
		return InviteView{}, err
	}

	if existing, err := s.store.GetOpenInviteForRole(ctx, c.ID, input.Role); err == nil {
		return s.inviteView(existing), nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return InviteView{}, fmt.Errorf("look up open invite: %w", err)
	}

	created, err := invite.NewInvite(input, s.now, s.newToken)
	if err != nil {
		return InviteView{}, err
	}
	if err := s.store.InsertInvite(ctx, created); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			// Lost an issuance race; the winner's token serves both callers.
			if existing, getErr := s.store.GetOpenInviteForRole(ctx, c.ID, input.Role); getErr == nil {
				return s.inviteView(existing), nil
			}
		}
		return InviteView{}, fmt.Errorf("persist invite: %w", err)
	}
	if s.metrics != nil {
		s.metrics.InvitesIssued.Inc()
	}
	s.logger.Info("invite issued",
		zap.String("contract_id", c.ID),
		zap.String("role", contract.RoleLabel(input.Role)),
	)
	return s.inviteView(created), nil
}

// ResolveInvite returns what the caller may learn about a token.
//
// identity is nil for anonymous callers, who get the reduced view only.
func (s *InviteService) ResolveInvite(ctx context.Context, identity *auth.Identity, token string) (ResolvedInvite, error) {
	ctx, span := tracer().Start(ctx, "InviteService.ResolveInvite")
	defer span.End()

	token = strings.TrimSpace(token)
	if !id.ValidInviteToken(token) {
		return ResolvedInvite{}, apperrors.New(apperrors.CodeInviteTokenInvalid, "invite token is malformed")
	}
	inv, err := s.store.GetInviteByToken(ctx, token)
	if err != nil {
		return ResolvedInvite{}, mapStorageError(err, "invite not found")
	}
	c, parties, err := s.loadContract(ctx, inv.ContractID)
	if err != nil {
		return ResolvedInvite{}, err
	}

	resolved := ResolvedInvite{
		Token:       inv.Token,
		ContractID:  inv.ContractID,
		Role:        contract.RoleLabel(inv.Role),
		InviterName: s.inviterName(c, parties),
		Redeemed:    inv.RedeemedAt != nil,
	}
	if identity == nil || identity.UserID == "" {
		return resolved, nil
	}

	resolved.Relationship = string(invite.RelationshipFor(inv, identity.UserID))
	view := contractView(c, parties, identity.UserID, inv.RedeemedAt == nil)
	resolved.Contract = &view
	return resolved, nil
}

// RedeemInvite binds the caller to the invited role. Redemption, binding, and
// the draft-to-waiting promotion are atomic at the storage boundary.
func (s *InviteService) RedeemInvite(ctx context.Context, identity auth.Identity, token string) (ContractView, error) {
	ctx, span := tracer().Start(ctx, "InviteService.RedeemInvite")
	defer span.End()

	token = strings.TrimSpace(token)
	if !id.ValidInviteToken(token) {
		return ContractView{}, apperrors.New(apperrors.CodeInviteTokenInvalid, "invite token is malformed")
	}
	if identity.UserID == "" {
		return ContractView{}, apperrors.New(apperrors.CodeUnauthenticated, "redeemer must be authenticated")
	}
	if strings.TrimSpace(identity.DisplayName) == "" {
		return ContractView{}, apperrors.New(apperrors.CodeParticipantNameMissing, "redeemer display name is required")
	}

	inv, err := s.store.GetInviteByToken(ctx, token)
	if err != nil {
		return ContractView{}, mapStorageError(err, "invite not found")
	}
	c, parties, err := s.loadContract(ctx, inv.ContractID)
	if err != nil {
		return ContractView{}, err
	}
	if err := invite.RedeemGuard(inv, c, parties, identity.UserID); err != nil {
		return ContractView{}, err
	}

	redeemedAt := s.now().UTC()
	party := contract.Party{
		ContractID:  inv.ContractID,
		Role:        inv.Role,
		UserID:      identity.UserID,
		DisplayName: strings.TrimSpace(identity.DisplayName),
		CreatedAt:   redeemedAt,
	}
	if err := s.store.RedeemInvite(ctx, token, party, redeemedAt); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return ContractView{}, s.classifyRedeemConflict(ctx, token)
		}
		return ContractView{}, mapStorageError(err, "invite not found")
	}
	if s.metrics != nil {
		s.metrics.InvitesRedeemed.Inc()
	}
	s.logger.Info("invite redeemed",
		zap.String("contract_id", inv.ContractID),
		zap.String("role", contract.RoleLabel(inv.Role)),
	)

	updated, updatedParties, err := s.loadContract(ctx, inv.ContractID)
	if err != nil {
		return ContractView{}, err
	}
	return contractView(updated, updatedParties, identity.UserID, false), nil
}

func (s *InviteService) loadContract(ctx context.Context, contractID string) (contract.Contract, []contract.Party, error) {
	if !id.ValidID(strings.TrimSpace(contractID)) {
		return contract.Contract{}, nil, apperrors.New(apperrors.CodeContractIDInvalid, "contract id is malformed")
	}
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return contract.Contract{}, nil, mapStorageError(err, "contract not found")
	}
	parties, err := s.store.GetParties(ctx, contractID)
	if err != nil {
		return contract.Contract{}, nil, fmt.Errorf("load parties: %w", err)
	}
	return c, parties, nil
}

func (s *InviteService) inviteView(inv invite.Invite) InviteView {
	return InviteView{
		Token:      inv.Token,
		URL:        invite.URL(s.baseURL, inv.Token),
		ContractID: inv.ContractID,
		Role:       contract.RoleLabel(inv.Role),
		Email:      inv.Email,
		Redeemed:   inv.RedeemedAt != nil,
	}
}

// inviterName is the display name shown to prospective redeemers. The issuer
// is always the contract creator.
func (s *InviteService) inviterName(c contract.Contract, parties []contract.Party) string {
	if p, ok := contract.PartyForUser(parties, c.CreatedByUserID); ok {
		return p.DisplayName
	}
	return ""
}

// classifyRedeemConflict distinguishes a token raced to redemption from a role
// bound through another path.
func (s *InviteService) classifyRedeemConflict(ctx context.Context, token string) error {
	inv, err := s.store.GetInviteByToken(ctx, token)
	if err == nil && inv.RedeemedAt != nil {
		return apperrors.New(apperrors.CodeInviteAlreadyRedeemed, "invite has already been redeemed")
	}
	return apperrors.New(apperrors.CodeRoleAlreadyBound, "target role was bound by another redemption")
}
