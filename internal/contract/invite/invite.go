// Package invite provides single-use invite token management for contracts.
package invite

import (
	"fmt"
	"strings"
	"time"

	"github.com/renteasy/renteasy/internal/contract"
	apperrors "github.com/renteasy/renteasy/internal/platform/errors"
	"github.com/renteasy/renteasy/internal/platform/id"
)

// Invite represents a single-use token binding an identity to a vacant role.
//
// Invites are never deleted; a redeemed invite is retained as an audit trail.
type Invite struct {
	Token           string
	ContractID      string
	Role            contract.Role
	CreatedByUserID string
	// Email optionally records who the invite was meant for. Informational
	// only; redemption is first-come by whoever holds the token.
	Email            string
	CreatedAt        time.Time
	RedeemedAt       *time.Time
	RedeemedByUserID string
}

// Relationship describes how an authenticated caller relates to an invite.
type Relationship string

const (
	// RelationshipCreator marks the user who issued the invite.
	RelationshipCreator Relationship = "creator"
	// RelationshipInvitee marks the user who redeemed the invite.
	RelationshipInvitee Relationship = "invitee"
	// RelationshipOther marks everyone else, including a prospective redeemer.
	RelationshipOther Relationship = "other"
)

// CreateInviteInput describes the metadata needed to create an invite.
type CreateInviteInput struct {
	ContractID      string
	Role            contract.Role
	CreatedByUserID string
	Email           string
}

// NewInvite creates an invite with a freshly generated token.
func NewInvite(input CreateInviteInput, now func() time.Time, tokenGenerator func() (string, error)) (Invite, error) {
	if now == nil {
		now = time.Now
	}
	if tokenGenerator == nil {
		tokenGenerator = id.NewInviteToken
	}

	input.ContractID = strings.TrimSpace(input.ContractID)
	if !id.ValidID(input.ContractID) {
		return Invite{}, apperrors.New(apperrors.CodeContractIDInvalid, "contract id is malformed")
	}
	if input.Role != contract.RoleLandlord && input.Role != contract.RoleTenant {
		return Invite{}, contract.ErrInvalidRole
	}
	input.CreatedByUserID = strings.TrimSpace(input.CreatedByUserID)
	if input.CreatedByUserID == "" {
		return Invite{}, apperrors.New(apperrors.CodeUnauthenticated, "issuer user id is required")
	}

	token, err := tokenGenerator()
	if err != nil {
		return Invite{}, fmt.Errorf("generate invite token: %w", err)
	}

	return Invite{
		Token:           token,
		ContractID:      input.ContractID,
		Role:            input.Role,
		CreatedByUserID: input.CreatedByUserID,
		Email:           strings.TrimSpace(input.Email),
		CreatedAt:       now().UTC(),
	}, nil
}

// IssueGuard reports whether issuer may create an invite for the target role.
func IssueGuard(c contract.Contract, parties []contract.Party, issuerUserID string, target contract.Role) error {
	if target != contract.RoleLandlord && target != contract.RoleTenant {
		return contract.ErrInvalidRole
	}
	if c.CreatedByUserID != issuerUserID {
		return apperrors.New(apperrors.CodeNotContractCreator, "only the contract creator can issue invites")
	}
	if c.Status != contract.StatusDraft && c.Status != contract.StatusWaiting {
		return apperrors.WithMetadata(
			apperrors.CodeContractStatusDisallowsOp,
			"invites can only be issued before the contract is signed",
			map[string]string{"Status": contract.StatusLabel(c.Status)},
		)
	}
	if _, bound := contract.PartyForRole(parties, target); bound {
		return apperrors.WithMetadata(
			apperrors.CodeRoleAlreadyBound,
			"target role is already bound",
			map[string]string{"Role": contract.RoleLabel(target)},
		)
	}
	return nil
}

// RedeemGuard reports whether redeemer may redeem the invite.
//
// Redemption requires an unredeemed token, a still-vacant target role, and a
// redeemer other than the contract creator. Uniqueness constraints at the
// storage boundary arbitrate races that pass this check concurrently.
func RedeemGuard(inv Invite, c contract.Contract, parties []contract.Party, redeemerUserID string) error {
	if redeemerUserID == "" {
		return apperrors.New(apperrors.CodeUnauthenticated, "redeemer must be authenticated")
	}
	if inv.RedeemedAt != nil {
		return apperrors.New(apperrors.CodeInviteAlreadyRedeemed, "invite has already been redeemed")
	}
	if redeemerUserID == c.CreatedByUserID {
		return apperrors.New(apperrors.CodeCreatorCannotRedeem, "creator cannot redeem their own invite")
	}
	if _, bound := contract.PartyForRole(parties, inv.Role); bound {
		return apperrors.WithMetadata(
			apperrors.CodeRoleAlreadyBound,
			"target role was bound by another redemption",
			map[string]string{"Role": contract.RoleLabel(inv.Role)},
		)
	}
	return nil
}

// RelationshipFor classifies an authenticated caller against an invite.
func RelationshipFor(inv Invite, userID string) Relationship {
	switch {
	case userID == inv.CreatedByUserID:
		return RelationshipCreator
	case inv.RedeemedByUserID != "" && userID == inv.RedeemedByUserID:
		return RelationshipInvitee
	default:
		return RelationshipOther
	}
}

// URL renders the shareable invite link for a token.
func URL(base, token string) string {
	return strings.TrimRight(base, "/") + "/invite/" + token
}
