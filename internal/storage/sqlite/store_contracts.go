package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/renteasy/renteasy/internal/contract"
	"github.com/renteasy/renteasy/internal/storage"
)

// Contract and party methods.

// InsertContract atomically writes a contract and its creator party.
func (s *Store) InsertContract(ctx context.Context, c contract.Contract, creator contract.Party) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("contract id is required")
	}
	if creator.ContractID != c.ID {
		return fmt.Errorf("creator party contract id mismatch")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert contract: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var deposit sql.NullInt64
	if c.Deposit != nil {
		deposit = sql.NullInt64{Int64: *c.Deposit, Valid: true}
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO contracts (
		   id, address, start_date, end_date, rent, deposit,
		   status, created_by_user_id, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.Address,
		toDate(c.StartDate),
		toDate(c.EndDate),
		c.Rent,
		deposit,
		contract.StatusLabel(c.Status),
		c.CreatedByUserID,
		toMillis(c.CreatedAt),
		toMillis(c.UpdatedAt),
	); err != nil {
		if isConstraintViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert contract: %w", err)
	}

	if err := insertPartyTx(ctx, tx, creator); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert contract: %w", err)
	}
	return nil
}

// GetContract fetches a contract by ID.
func (s *Store) GetContract(ctx context.Context, contractID string) (contract.Contract, error) {
	if err := ctx.Err(); err != nil {
		return contract.Contract{}, err
	}
	if s == nil || s.sqlDB == nil {
		return contract.Contract{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(contractID) == "" {
		return contract.Contract{}, fmt.Errorf("contract id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, address, start_date, end_date, rent, deposit,
		        status, created_by_user_id, created_at, updated_at
		   FROM contracts WHERE id = ?`,
		contractID,
	)
	c, err := scanContract(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return contract.Contract{}, storage.ErrNotFound
		}
		return contract.Contract{}, fmt.Errorf("get contract: %w", err)
	}
	return c, nil
}

// ListContractsForUser returns every contract the user is a party on, newest first.
func (s *Store) ListContractsForUser(ctx context.Context, userID string) ([]contract.Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT c.id, c.address, c.start_date, c.end_date, c.rent, c.deposit,
		        c.status, c.created_by_user_id, c.created_at, c.updated_at
		   FROM contracts c
		   JOIN parties p ON p.contract_id = c.id
		  WHERE p.user_id = ?
		  ORDER BY c.created_at DESC, c.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var contracts []contract.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	return contracts, nil
}

// GetParties returns all bound parties for a contract.
func (s *Store) GetParties(ctx context.Context, contractID string) ([]contract.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(contractID) == "" {
		return nil, fmt.Errorf("contract id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT contract_id, role, user_id, display_name, verified_at, signed_at, created_at
		   FROM parties WHERE contract_id = ? ORDER BY role`,
		contractID,
	)
	if err != nil {
		return nil, fmt.Errorf("get parties: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var parties []contract.Party
	for rows.Next() {
		var (
			p          contract.Party
			role       string
			verifiedAt sql.NullInt64
			signedAt   sql.NullInt64
			createdAt  int64
		)
		if err := rows.Scan(&p.ContractID, &role, &p.UserID, &p.DisplayName, &verifiedAt, &signedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		p.Role = contract.RoleFromLabel(role)
		p.VerifiedAt = fromNullMillis(verifiedAt)
		p.SignedAt = fromNullMillis(signedAt)
		p.CreatedAt = fromMillis(createdAt)
		parties = append(parties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get parties: %w", err)
	}
	return parties, nil
}

// InsertParty binds a role to a user. The (contract_id, role) constraint
// arbitrates concurrent bindings.
func (s *Store) InsertParty(ctx context.Context, p contract.Party) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert party: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertPartyTx(ctx, tx, p); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert party: %w", err)
	}
	return nil
}

// UpdateContractStatus transitions status guarded by the expected previous status.
func (s *Store) UpdateContractStatus(ctx context.Context, contractID string, from, to contract.Status, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(contractID) == "" {
		return fmt.Errorf("contract id is required")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE contracts SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		contract.StatusLabel(to),
		toMillis(at),
		contractID,
		contract.StatusLabel(from),
	)
	if err != nil {
		return fmt.Errorf("update contract status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contract status: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetContract(ctx, contractID); err != nil {
			return err
		}
		return storage.ErrConflict
	}
	return nil
}

// SetPartySignature records a signature and decides promotion to signed.
//
// The signature write, the read of both parties' signature state, and the
// promotion all happen inside one transaction so two near-simultaneous
// signings cannot both observe "only one signed".
func (s *Store) SetPartySignature(ctx context.Context, contractID, userID string, at time.Time) (storage.SignatureResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.SignatureResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SignatureResult{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(contractID) == "" {
		return storage.SignatureResult{}, fmt.Errorf("contract id is required")
	}
	if strings.TrimSpace(userID) == "" {
		return storage.SignatureResult{}, fmt.Errorf("user id is required")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.SignatureResult{}, fmt.Errorf("begin set signature: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing sql.NullInt64
	row := tx.QueryRowContext(
		ctx,
		`SELECT signed_at FROM parties WHERE contract_id = ? AND user_id = ?`,
		contractID,
		userID,
	)
	if err := row.Scan(&existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SignatureResult{}, storage.ErrNotFound
		}
		return storage.SignatureResult{}, fmt.Errorf("read party signature: %w", err)
	}

	result := storage.SignatureResult{AlreadySigned: existing.Valid}
	if !existing.Valid {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE parties SET signed_at = ? WHERE contract_id = ? AND user_id = ? AND signed_at IS NULL`,
			toMillis(at),
			contractID,
			userID,
		); err != nil {
			return storage.SignatureResult{}, fmt.Errorf("set party signature: %w", err)
		}
	}

	var signedCount int
	row = tx.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM parties WHERE contract_id = ? AND signed_at IS NOT NULL`,
		contractID,
	)
	if err := row.Scan(&signedCount); err != nil {
		return storage.SignatureResult{}, fmt.Errorf("count signatures: %w", err)
	}
	result.BothSigned = signedCount == 2

	if result.BothSigned {
		updated, err := tx.ExecContext(
			ctx,
			`UPDATE contracts SET status = ?, updated_at = ?
			  WHERE id = ? AND status IN (?, ?)`,
			contract.StatusLabel(contract.StatusSigned),
			toMillis(at),
			contractID,
			contract.StatusLabel(contract.StatusDraft),
			contract.StatusLabel(contract.StatusWaiting),
		)
		if err != nil {
			return storage.SignatureResult{}, fmt.Errorf("promote contract to signed: %w", err)
		}
		affected, err := updated.RowsAffected()
		if err != nil {
			return storage.SignatureResult{}, fmt.Errorf("promote contract to signed: %w", err)
		}
		result.Promoted = affected > 0
	}

	if err := tx.Commit(); err != nil {
		return storage.SignatureResult{}, fmt.Errorf("commit set signature: %w", err)
	}
	return result, nil
}

// DeleteContract removes a draft or waiting contract and its dependents.
func (s *Store) DeleteContract(ctx context.Context, contractID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(contractID) == "" {
		return fmt.Errorf("contract id is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM contracts WHERE id = ? AND status IN (?, ?)`,
		contractID,
		contract.StatusLabel(contract.StatusDraft),
		contract.StatusLabel(contract.StatusWaiting),
	)
	if err != nil {
		return fmt.Errorf("delete contract: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete contract: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetContract(ctx, contractID); err != nil {
			return err
		}
		return storage.ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (contract.Contract, error) {
	var (
		c         contract.Contract
		startDate string
		endDate   string
		deposit   sql.NullInt64
		status    string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&c.ID, &c.Address, &startDate, &endDate, &c.Rent, &deposit, &status, &c.CreatedByUserID, &createdAt, &updatedAt); err != nil {
		return contract.Contract{}, err
	}
	start, err := fromDate(startDate)
	if err != nil {
		return contract.Contract{}, err
	}
	end, err := fromDate(endDate)
	if err != nil {
		return contract.Contract{}, err
	}
	c.StartDate = start
	c.EndDate = end
	if deposit.Valid {
		value := deposit.Int64
		c.Deposit = &value
	}
	c.Status = contract.StatusFromLabel(status)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

func insertPartyTx(ctx context.Context, tx *sql.Tx, p contract.Party) error {
	if strings.TrimSpace(p.ContractID) == "" {
		return fmt.Errorf("party contract id is required")
	}
	if p.Role != contract.RoleLandlord && p.Role != contract.RoleTenant {
		return fmt.Errorf("party role is required")
	}
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("party user id is required")
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO parties (
		   contract_id, role, user_id, display_name, verified_at, signed_at, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ContractID,
		contract.RoleLabel(p.Role),
		p.UserID,
		p.DisplayName,
		toNullMillis(p.VerifiedAt),
		toNullMillis(p.SignedAt),
		toMillis(p.CreatedAt),
	); err != nil {
		if isConstraintViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert party: %w", err)
	}
	return nil
}
