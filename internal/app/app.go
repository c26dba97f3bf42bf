// Package app orchestrates contract, invite, and signing operations on top of
// the domain packages and the storage boundary.
package app

import (
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/renteasy/renteasy/internal/contract"
	apperrors "github.com/renteasy/renteasy/internal/platform/errors"
	"github.com/renteasy/renteasy/internal/storage"
)

const tracerName = "github.com/renteasy/renteasy/internal/app"

// PartyView is the party state disclosed to contract members.
type PartyView struct {
	Role        string     `json:"role"`
	UserID      string     `json:"userId"`
	DisplayName string     `json:"displayName"`
	Signed      bool       `json:"signed"`
	SignedAt    *time.Time `json:"signedAt,omitempty"`
	IsSelf      bool       `json:"isSelf"`
}

// ContractView is the contract state disclosed to a bound party.
type ContractView struct {
	ID              string      `json:"id"`
	Address         string      `json:"address"`
	StartDate       time.Time   `json:"startDate"`
	EndDate         time.Time   `json:"endDate"`
	Rent            int64       `json:"rent"`
	Deposit         *int64      `json:"deposit,omitempty"`
	Status          string      `json:"status"`
	IsCreator       bool        `json:"isCreator"`
	HasInvitedParty bool        `json:"hasInvitedParty"`
	Parties         []PartyView `json:"parties"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// ContractList splits a user's contracts by who created them.
type ContractList struct {
	Mine     []ContractView `json:"mine"`
	Received []ContractView `json:"received"`
}

func contractView(c contract.Contract, parties []contract.Party, userID string, invited bool) ContractView {
	view := ContractView{
		ID:              c.ID,
		Address:         c.Address,
		StartDate:       c.StartDate,
		EndDate:         c.EndDate,
		Rent:            c.Rent,
		Deposit:         c.Deposit,
		Status:          contract.StatusLabel(c.Status),
		IsCreator:       c.CreatedByUserID == userID,
		HasInvitedParty: invited,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	for _, p := range parties {
		view.Parties = append(view.Parties, PartyView{
			Role:        contract.RoleLabel(p.Role),
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Signed:      p.SignedAt != nil,
			SignedAt:    p.SignedAt,
			IsSelf:      p.UserID == userID,
		})
	}
	return view
}

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func nopLogger(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// mapStorageError lifts storage sentinels into domain errors.
func mapStorageError(err error, notFoundMessage string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.New(apperrors.CodeNotFound, notFoundMessage)
	}
	return err
}
