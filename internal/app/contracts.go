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
	apperrors "github.com/renteasy/renteasy/internal/platform/errors"
	"github.com/renteasy/renteasy/internal/platform/id"
	"github.com/renteasy/renteasy/internal/platform/metrics"
	"github.com/renteasy/renteasy/internal/storage"
)

// ContractService drives the contract lifecycle.
type ContractService struct {
	store   storage.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() (string, error)
}

// NewContractService creates a contract service.
func NewContractService(store storage.Store, logger *zap.Logger, m *metrics.Metrics) (*ContractService, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	return &ContractService{
		store:   store,
		logger:  nopLogger(logger),
		metrics: m,
		now:     time.Now,
		newID:   id.NewID,
	}, nil
}

// Create creates a draft contract with the caller bound to their chosen role.
func (s *ContractService) Create(ctx context.Context, identity auth.Identity, input contract.CreateContractInput) (ContractView, error) {
	ctx, span := tracer().Start(ctx, "ContractService.Create")
	defer span.End()

	if identity.UserID == "" {
		return ContractView{}, apperrors.New(apperrors.CodeUnauthenticated, "caller must be authenticated")
	}
	if strings.TrimSpace(identity.DisplayName) == "" {
		return ContractView{}, apperrors.New(apperrors.CodeParticipantNameMissing, "caller display name is required")
	}

	created, creator, err := contract.NewContract(input, identity.UserID, identity.DisplayName, s.now, s.newID)
	if err != nil {
		return ContractView{}, err
	}
	if err := s.store.InsertContract(ctx, created, creator); err != nil {
		return ContractView{}, fmt.Errorf("persist contract: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ContractsCreated.Inc()
	}
	s.logger.Info("contract created",
		zap.String("contract_id", created.ID),
		zap.String("creator_role", contract.RoleLabel(creator.Role)),
	)
	return contractView(created, []contract.Party{creator}, identity.UserID, false), nil
}

// Get returns the contract as seen by a bound party.
func (s *ContractService) Get(ctx context.Context, identity auth.Identity, contractID string) (ContractView, error) {
	ctx, span := tracer().Start(ctx, "ContractService.Get")
	defer span.End()

	c, parties, err := s.load(ctx, contractID)
	if err != nil {
		return ContractView{}, err
	}
	if _, ok := contract.PartyForUser(parties, identity.UserID); !ok {
		return ContractView{}, apperrors.New(apperrors.CodeNotContractParty, "user is not a party on this contract")
	}
	return contractView(c, parties, identity.UserID, s.hasOpenInvite(ctx, c, parties)), nil
}

// List returns the caller's contracts split into created and received.
func (s *ContractService) List(ctx context.Context, identity auth.Identity) (ContractList, error) {
	ctx, span := tracer().Start(ctx, "ContractService.List")
	defer span.End()

	if identity.UserID == "" {
		return ContractList{}, apperrors.New(apperrors.CodeUnauthenticated, "caller must be authenticated")
	}
	contracts, err := s.store.ListContractsForUser(ctx, identity.UserID)
	if err != nil {
		return ContractList{}, fmt.Errorf("list contracts: %w", err)
	}

	var list ContractList
	for _, c := range contracts {
		parties, err := s.store.GetParties(ctx, c.ID)
		if err != nil {
			return ContractList{}, fmt.Errorf("load parties: %w", err)
		}
		view := contractView(c, parties, identity.UserID, s.hasOpenInvite(ctx, c, parties))
		if view.IsCreator {
			list.Mine = append(list.Mine, view)
		} else {
			list.Received = append(list.Received, view)
		}
	}
	return list, nil
}

// Delete removes an unsigned contract. Creator only.
func (s *ContractService) Delete(ctx context.Context, identity auth.Identity, contractID string) error {
	ctx, span := tracer().Start(ctx, "ContractService.Delete")
	defer span.End()

	c, _, err := s.load(ctx, contractID)
	if err != nil {
		return err
	}
	if err := contract.DeleteGuard(c, identity.UserID); err != nil {
		return err
	}
	if err := s.store.DeleteContract(ctx, contractID); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// Signed between the guard read and the delete.
			return apperrors.New(apperrors.CodeContractStatusDisallowsOp, "signed contracts cannot be deleted")
		}
		return mapStorageError(err, "contract not found")
	}
	if s.metrics != nil {
		s.metrics.ContractsDeleted.Inc()
	}
	s.logger.Info("contract deleted", zap.String("contract_id", contractID))
	return nil
}

// RecordPartySignature durably records the caller's signature.
//
// A duplicate delivery is a success no-op; promotion to signed is decided by
// the storage transaction writing the second signature.
func (s *ContractService) RecordPartySignature(ctx context.Context, identity auth.Identity, contractID string) (storage.SignatureResult, error) {
	ctx, span := tracer().Start(ctx, "ContractService.RecordPartySignature")
	defer span.End()

	c, parties, err := s.load(ctx, contractID)
	if err != nil {
		return storage.SignatureResult{}, err
	}
	party, ok := contract.PartyForUser(parties, identity.UserID)
	if !ok {
		return storage.SignatureResult{}, apperrors.New(apperrors.CodeNotContractParty, "user is not a party on this contract")
	}
	if party.SignedAt == nil {
		if err := contract.SigningGuard(c, parties, identity.UserID); err != nil {
			return storage.SignatureResult{}, err
		}
	}

	result, err := s.store.SetPartySignature(ctx, contractID, identity.UserID, s.now().UTC())
	if err != nil {
		return storage.SignatureResult{}, mapStorageError(err, "contract not found")
	}
	if s.metrics != nil {
		if !result.AlreadySigned {
			s.metrics.SignaturesRecorded.Inc()
		}
		if result.Promoted {
			s.metrics.ContractsSigned.Inc()
		}
	}
	if result.Promoted {
		s.logger.Info("contract fully signed", zap.String("contract_id", contractID))
	}
	return result, nil
}

// Complete moves a signed contract to completed. Duplicate deliveries are
// benign no-ops.
func (s *ContractService) Complete(ctx context.Context, identity auth.Identity, contractID string) error {
	ctx, span := tracer().Start(ctx, "ContractService.Complete")
	defer span.End()

	c, parties, err := s.load(ctx, contractID)
	if err != nil {
		return err
	}
	if _, ok := contract.PartyForUser(parties, identity.UserID); !ok {
		return apperrors.New(apperrors.CodeNotContractParty, "user is not a party on this contract")
	}
	if c.Status == contract.StatusCompleted {
		return nil
	}
	updated, err := contract.TransitionStatus(c, contract.StatusCompleted, s.now)
	if err != nil {
		return err
	}
	err = s.store.UpdateContractStatus(ctx, contractID, c.Status, updated.Status, updated.UpdatedAt)
	if errors.Is(err, storage.ErrConflict) {
		current, getErr := s.store.GetContract(ctx, contractID)
		if getErr == nil && current.Status == contract.StatusCompleted {
			return nil
		}
		return apperrors.New(apperrors.CodeContractInvalidStatusTransition, "contract status changed concurrently")
	}
	if err != nil {
		return mapStorageError(err, "contract not found")
	}
	return nil
}

func (s *ContractService) load(ctx context.Context, contractID string) (contract.Contract, []contract.Party, error) {
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

// hasOpenInvite reports whether an unredeemed invite exists for the vacant
// role. Lookup failures degrade to false; the flag is presentational.
func (s *ContractService) hasOpenInvite(ctx context.Context, c contract.Contract, parties []contract.Party) bool {
	if len(parties) != 1 {
		return false
	}
	vacant := contract.Other(parties[0].Role)
	if vacant == contract.RoleUnspecified {
		return false
	}
	if _, err := s.store.GetOpenInviteForRole(ctx, c.ID, vacant); err != nil {
		return false
	}
	return true
}
