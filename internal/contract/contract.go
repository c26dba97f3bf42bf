// Package contract provides the rental contract lifecycle domain.
package contract

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/renteasy/renteasy/internal/platform/errors"
	"github.com/renteasy/renteasy/internal/platform/id"
)

// Role identifies the party slot a user occupies on a contract.
type Role int

// Status describes the lifecycle of a contract.
type Status int

const (
	// RoleUnspecified represents an invalid role value.
	RoleUnspecified Role = iota
	// RoleLandlord indicates the landlord slot.
	RoleLandlord
	// RoleTenant indicates the tenant slot.
	RoleTenant
)

const (
	// StatusUnspecified represents an invalid contract status value.
	StatusUnspecified Status = iota
	// StatusDraft indicates the contract was created and the opposite role is
	// not yet bound (or parties have not finished signing an unbound draft).
	StatusDraft
	// StatusWaiting indicates both roles are bound but signatures are missing.
	StatusWaiting
	// StatusSigned indicates both parties have recorded a signature.
	StatusSigned
	// StatusCompleted indicates post-signature obligations finished. Terminal.
	StatusCompleted
)

var (
	// ErrEmptyAddress indicates a missing rental address.
	ErrEmptyAddress = apperrors.New(apperrors.CodeContractAddressEmpty, "address is required")
	// ErrInvalidPeriod indicates a rental period whose end does not follow its start.
	ErrInvalidPeriod = apperrors.New(apperrors.CodeContractPeriodInvalid, "period end must be after start")
	// ErrInvalidRent indicates a non-positive rent amount.
	ErrInvalidRent = apperrors.New(apperrors.CodeContractRentInvalid, "rent must be greater than zero")
	// ErrInvalidDeposit indicates a negative deposit amount.
	ErrInvalidDeposit = apperrors.New(apperrors.CodeContractDepositInvalid, "deposit must not be negative")
	// ErrInvalidRole indicates a missing or unknown party role.
	ErrInvalidRole = apperrors.New(apperrors.CodeContractRoleInvalid, "role must be landlord or tenant")
)

// Contract represents one rental agreement coordinated between two parties.
type Contract struct {
	ID      string
	Address string
	// StartDate and EndDate bound the rental period (date precision, UTC).
	StartDate time.Time
	EndDate   time.Time
	// Rent is the monthly rent amount in whole kronor.
	Rent int64
	// Deposit is the optional deposit amount in whole kronor.
	Deposit         *int64
	Status          Status
	CreatedByUserID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Party represents the landlord or tenant slot on a contract, bound to a user.
//
// An unbound slot has no Party record at all; binding is the insertion of the
// record and is immutable afterwards.
type Party struct {
	ContractID  string
	Role        Role
	UserID      string
	DisplayName string
	VerifiedAt  *time.Time
	SignedAt    *time.Time
	CreatedAt   time.Time
}

// CreateContractInput describes the metadata needed to create a contract.
type CreateContractInput struct {
	Address     string
	StartDate   time.Time
	EndDate     time.Time
	Rent        int64
	Deposit     *int64
	CreatorRole Role
}

// NormalizeCreateContractInput trims and validates contract input metadata.
func NormalizeCreateContractInput(input CreateContractInput) (CreateContractInput, error) {
	input.Address = strings.TrimSpace(input.Address)
	if input.Address == "" {
		return CreateContractInput{}, ErrEmptyAddress
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() || !input.EndDate.After(input.StartDate) {
		return CreateContractInput{}, ErrInvalidPeriod
	}
	if input.Rent <= 0 {
		return CreateContractInput{}, ErrInvalidRent
	}
	if input.Deposit != nil && *input.Deposit < 0 {
		return CreateContractInput{}, ErrInvalidDeposit
	}
	if input.CreatorRole != RoleLandlord && input.CreatorRole != RoleTenant {
		return CreateContractInput{}, ErrInvalidRole
	}
	return input, nil
}

// NewContract creates a draft contract with the creator bound to their role.
// The opposite role starts unbound.
func NewContract(input CreateContractInput, creatorUserID, creatorName string, now func() time.Time, idGenerator func() (string, error)) (Contract, Party, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateContractInput(input)
	if err != nil {
		return Contract{}, Party{}, err
	}
	creatorUserID = strings.TrimSpace(creatorUserID)
	if creatorUserID == "" {
		return Contract{}, Party{}, apperrors.New(apperrors.CodeUnauthenticated, "creator user id is required")
	}

	contractID, err := idGenerator()
	if err != nil {
		return Contract{}, Party{}, fmt.Errorf("generate contract id: %w", err)
	}

	createdAt := now().UTC()
	created := Contract{
		ID:              contractID,
		Address:         normalized.Address,
		StartDate:       normalized.StartDate.UTC(),
		EndDate:         normalized.EndDate.UTC(),
		Rent:            normalized.Rent,
		Deposit:         normalized.Deposit,
		Status:          StatusDraft,
		CreatedByUserID: creatorUserID,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	creator := Party{
		ContractID:  contractID,
		Role:        normalized.CreatorRole,
		UserID:      creatorUserID,
		DisplayName: strings.TrimSpace(creatorName),
		CreatedAt:   createdAt,
	}
	return created, creator, nil
}

// TransitionStatus applies a status transition and updates timestamps.
func TransitionStatus(c Contract, target Status, now func() time.Time) (Contract, error) {
	if now == nil {
		now = time.Now
	}
	if !IsStatusTransitionAllowed(c.Status, target) {
		fromStatus := StatusLabel(c.Status)
		toStatus := StatusLabel(target)
		return Contract{}, apperrors.WithMetadata(
			apperrors.CodeContractInvalidStatusTransition,
			fmt.Sprintf("contract status transition not allowed: %s -> %s", fromStatus, toStatus),
			map[string]string{"FromStatus": fromStatus, "ToStatus": toStatus},
		)
	}

	updated := c
	updated.Status = target
	updated.UpdatedAt = now().UTC()
	return updated, nil
}

// IsStatusTransitionAllowed reports whether a status transition is permitted.
func IsStatusTransitionAllowed(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusWaiting
	case StatusWaiting:
		return to == StatusSigned
	case StatusSigned:
		return to == StatusCompleted
	default:
		return false
	}
}

// Other returns the opposite party role.
func Other(role Role) Role {
	switch role {
	case RoleLandlord:
		return RoleTenant
	case RoleTenant:
		return RoleLandlord
	default:
		return RoleUnspecified
	}
}

// PartyForUser returns the party bound to userID, if any.
func PartyForUser(parties []Party, userID string) (Party, bool) {
	for _, p := range parties {
		if p.UserID == userID {
			return p, true
		}
	}
	return Party{}, false
}

// PartyForRole returns the party bound to role, if any.
func PartyForRole(parties []Party, role Role) (Party, bool) {
	for _, p := range parties {
		if p.Role == role {
			return p, true
		}
	}
	return Party{}, false
}

// SigningGuard reports whether userID may initiate signing on the contract.
//
// Signing requires a draft or waiting contract, both roles bound, the caller
// bound to one of them, and the caller's signature still missing. A lone party
// cannot sign an incomplete contract.
func SigningGuard(c Contract, parties []Party, userID string) error {
	party, ok := PartyForUser(parties, userID)
	if !ok {
		return apperrors.New(apperrors.CodeNotContractParty, "user is not a party on this contract")
	}
	if c.Status != StatusDraft && c.Status != StatusWaiting {
		return apperrors.WithMetadata(
			apperrors.CodeSigningNotAllowed,
			"contract is already fully signed",
			map[string]string{"Status": StatusLabel(c.Status)},
		)
	}
	if _, bound := PartyForRole(parties, Other(party.Role)); !bound {
		return apperrors.New(apperrors.CodeSigningNotAllowed, "other party has not joined the contract yet")
	}
	if party.SignedAt != nil {
		return apperrors.New(apperrors.CodeSigningNotAllowed, "party has already signed")
	}
	return nil
}

// DeleteGuard reports whether userID may delete the contract.
//
// Deletion is permitted only from draft or waiting, and only by the creator.
func DeleteGuard(c Contract, userID string) error {
	if c.CreatedByUserID != userID {
		return apperrors.New(apperrors.CodeNotContractCreator, "only the contract creator can delete it")
	}
	if c.Status != StatusDraft && c.Status != StatusWaiting {
		return apperrors.WithMetadata(
			apperrors.CodeContractStatusDisallowsOp,
			"signed contracts cannot be deleted",
			map[string]string{"Status": StatusLabel(c.Status)},
		)
	}
	return nil
}

// StatusLabel returns a stable label for a contract status.
func StatusLabel(status Status) string {
	switch status {
	case StatusDraft:
		return "DRAFT"
	case StatusWaiting:
		return "WAITING"
	case StatusSigned:
		return "SIGNED"
	case StatusCompleted:
		return "COMPLETED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel converts a status label to a Status value.
func StatusFromLabel(label string) Status {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "DRAFT":
		return StatusDraft
	case "WAITING":
		return StatusWaiting
	case "SIGNED":
		return StatusSigned
	case "COMPLETED":
		return StatusCompleted
	default:
		return StatusUnspecified
	}
}

// RoleLabel returns the string label for a party role.
func RoleLabel(role Role) string {
	switch role {
	case RoleLandlord:
		return "LANDLORD"
	case RoleTenant:
		return "TENANT"
	default:
		return "UNSPECIFIED"
	}
}

// RoleFromLabel converts a role label to a Role value.
func RoleFromLabel(label string) Role {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "LANDLORD":
		return RoleLandlord
	case "TENANT":
		return RoleTenant
	default:
		return RoleUnspecified
	}
}
