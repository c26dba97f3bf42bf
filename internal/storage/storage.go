// Package storage defines persistence contracts for contract coordination state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/renteasy/renteasy/internal/contract"
	"github.com/renteasy/renteasy/internal/contract/invite"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrConflict indicates a guarded write lost against the current row state.
	ErrConflict = errors.New("operation conflicts with current record state")
)

// SignatureResult reports the outcome of a signature write.
type SignatureResult struct {
	// AlreadySigned is true when the party had a signature before the write;
	// the write was a benign no-op.
	AlreadySigned bool
	// BothSigned is true when both parties carry a signature after the write,
	// observed inside the same transaction.
	BothSigned bool
	// Promoted is true when this write transitioned the contract to signed.
	Promoted bool
}

// ContractStore persists contracts and their parties.
type ContractStore interface {
	// InsertContract atomically writes a contract and its creator party.
	InsertContract(ctx context.Context, c contract.Contract, creator contract.Party) error
	GetContract(ctx context.Context, contractID string) (contract.Contract, error)
	// ListContractsForUser returns every contract the user is a party on,
	// newest first.
	ListContractsForUser(ctx context.Context, userID string) ([]contract.Contract, error)
	GetParties(ctx context.Context, contractID string) ([]contract.Party, error)
	// InsertParty binds a role. The (contract_id, role) uniqueness constraint
	// arbitrates concurrent bindings; the loser gets ErrAlreadyExists.
	InsertParty(ctx context.Context, p contract.Party) error
	// UpdateContractStatus transitions status guarded by the expected previous
	// status. A guard miss returns ErrConflict.
	UpdateContractStatus(ctx context.Context, contractID string, from, to contract.Status, at time.Time) error
	// SetPartySignature records the signature for the party bound to userID
	// and decides promotion to signed from both parties' state inside the
	// same transaction. Recording an already-signed party is a no-op.
	SetPartySignature(ctx context.Context, contractID, userID string, at time.Time) (SignatureResult, error)
	// DeleteContract removes a draft or waiting contract along with its
	// parties and invites. A signed or completed contract returns ErrConflict.
	DeleteContract(ctx context.Context, contractID string) error
}

// InviteStore persists invite tokens.
type InviteStore interface {
	InsertInvite(ctx context.Context, inv invite.Invite) error
	GetInviteByToken(ctx context.Context, token string) (invite.Invite, error)
	// GetOpenInviteForRole returns the unredeemed invite for a role, enabling
	// idempotent issuance.
	GetOpenInviteForRole(ctx context.Context, contractID string, role contract.Role) (invite.Invite, error)
	// RedeemInvite marks the invite redeemed, binds the party, and promotes a
	// draft contract to waiting, all in one transaction. A redeemed token or
	// bound role returns ErrConflict with no partial effect.
	RedeemInvite(ctx context.Context, token string, p contract.Party, at time.Time) error
}

// Store combines all persistence interfaces backed by one database.
type Store interface {
	ContractStore
	InviteStore
}
