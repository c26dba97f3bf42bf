package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/renteasy/renteasy/internal/contract"
	"github.com/renteasy/renteasy/internal/contract/invite"
	"github.com/renteasy/renteasy/internal/storage"
)

// Invite methods.

// InsertInvite writes a new invite token. The (contract_id, role) constraint
// arbitrates concurrent issuance for the same role.
func (s *Store) InsertInvite(ctx context.Context, inv invite.Invite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(inv.Token) == "" {
		return fmt.Errorf("invite token is required")
	}
	if strings.TrimSpace(inv.ContractID) == "" {
		return fmt.Errorf("invite contract id is required")
	}

	var redeemedBy sql.NullString
	if inv.RedeemedByUserID != "" {
		redeemedBy = sql.NullString{String: inv.RedeemedByUserID, Valid: true}
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO invites (
		   token, contract_id, role, created_by_user_id, email,
		   created_at, redeemed_at, redeemed_by_user_id
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.Token,
		inv.ContractID,
		contract.RoleLabel(inv.Role),
		inv.CreatedByUserID,
		inv.Email,
		toMillis(inv.CreatedAt),
		toNullMillis(inv.RedeemedAt),
		redeemedBy,
	); err != nil {
		if isConstraintViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

// GetInviteByToken fetches an invite by its token.
func (s *Store) GetInviteByToken(ctx context.Context, token string) (invite.Invite, error) {
	if err := ctx.Err(); err != nil {
		return invite.Invite{}, err
	}
	if s == nil || s.sqlDB == nil {
		return invite.Invite{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(token) == "" {
		return invite.Invite{}, fmt.Errorf("invite token is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT token, contract_id, role, created_by_user_id, email,
		        created_at, redeemed_at, redeemed_by_user_id
		   FROM invites WHERE token = ?`,
		token,
	)
	inv, err := scanInvite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invite.Invite{}, storage.ErrNotFound
		}
		return invite.Invite{}, fmt.Errorf("get invite: %w", err)
	}
	return inv, nil
}

// GetOpenInviteForRole returns the unredeemed invite for a contract role.
func (s *Store) GetOpenInviteForRole(ctx context.Context, contractID string, role contract.Role) (invite.Invite, error) {
	if err := ctx.Err(); err != nil {
		return invite.Invite{}, err
	}
	if s == nil || s.sqlDB == nil {
		return invite.Invite{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(contractID) == "" {
		return invite.Invite{}, fmt.Errorf("contract id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT token, contract_id, role, created_by_user_id, email,
		        created_at, redeemed_at, redeemed_by_user_id
		   FROM invites
		  WHERE contract_id = ? AND role = ? AND redeemed_at IS NULL`,
		contractID,
		contract.RoleLabel(role),
	)
	inv, err := scanInvite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invite.Invite{}, storage.ErrNotFound
		}
		return invite.Invite{}, fmt.Errorf("get open invite: %w", err)
	}
	return inv, nil
}

// RedeemInvite marks the invite redeemed, binds the invited party, and
// promotes a draft contract to waiting, all inside one transaction.
//
// The guarded UPDATE on redeemed_at arbitrates concurrent redemptions of the
// same token; the party insert's (contract_id, role) constraint arbitrates a
// redemption racing a direct role binding. Either loss rolls the whole
// transaction back, so a failed redemption leaves no partial effect.
func (s *Store) RedeemInvite(ctx context.Context, token string, p contract.Party, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("invite token is required")
	}
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("party user id is required")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin redeem invite: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(
		ctx,
		`UPDATE invites SET redeemed_at = ?, redeemed_by_user_id = ?
		  WHERE token = ? AND redeemed_at IS NULL`,
		toMillis(at),
		p.UserID,
		token,
	)
	if err != nil {
		return fmt.Errorf("redeem invite: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("redeem invite: %w", err)
	}
	if affected == 0 {
		var exists int
		row := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM invites WHERE token = ?`, token)
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("check invite: %w", err)
		}
		if exists == 0 {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	}

	if err := insertPartyTx(ctx, tx, p); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return storage.ErrConflict
		}
		return err
	}

	// Draft contracts gain their first external participant here; waiting
	// contracts stay waiting.
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE contracts SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		contract.StatusLabel(contract.StatusWaiting),
		toMillis(at),
		p.ContractID,
		contract.StatusLabel(contract.StatusDraft),
	); err != nil {
		return fmt.Errorf("promote contract to waiting: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit redeem invite: %w", err)
	}
	return nil
}

func scanInvite(row rowScanner) (invite.Invite, error) {
	var (
		inv        invite.Invite
		role       string
		createdAt  int64
		redeemedAt sql.NullInt64
		redeemedBy sql.NullString
	)
	if err := row.Scan(&inv.Token, &inv.ContractID, &role, &inv.CreatedByUserID, &inv.Email, &createdAt, &redeemedAt, &redeemedBy); err != nil {
		return invite.Invite{}, err
	}
	inv.Role = contract.RoleFromLabel(role)
	inv.CreatedAt = fromMillis(createdAt)
	inv.RedeemedAt = fromNullMillis(redeemedAt)
	if redeemedBy.Valid {
		inv.RedeemedByUserID = redeemedBy.String
	}
	return inv, nil
}
