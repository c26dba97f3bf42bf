package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/renteasy/renteasy/internal/contract"
	"github.com/renteasy/renteasy/internal/contract/invite"
	"github.com/renteasy/renteasy/internal/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "contracts.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open(%q) error = %v", path, err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func testClock(offset time.Duration) time.Time {
	base := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	return base.Add(offset)
}

func testContract(id string) (contract.Contract, contract.Party) {
	deposit := int64(24000)
	createdAt := testClock(0)
	c := contract.Contract{
		ID:              id,
		Address:         "Storgatan 5, Stockholm",
		StartDate:       time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2027, time.March, 31, 0, 0, 0, 0, time.UTC),
		Rent:            12000,
		Deposit:         &deposit,
		Status:          contract.StatusDraft,
		CreatedByUserID: "user-landlord",
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	creator := contract.Party{
		ContractID:  id,
		Role:        contract.RoleLandlord,
		UserID:      "user-landlord",
		DisplayName: "Lena Landlord",
		CreatedAt:   createdAt,
	}
	return c, creator
}

func mustInsertContract(t *testing.T, store *Store, id string) contract.Contract {
	t.Helper()

	c, creator := testContract(id)
	if err := store.InsertContract(context.Background(), c, creator); err != nil {
		t.Fatalf("InsertContract() error = %v", err)
	}
	return c
}

func tenantParty(contractID string) contract.Party {
	return contract.Party{
		ContractID:  contractID,
		Role:        contract.RoleTenant,
		UserID:      "user-tenant",
		DisplayName: "Tova Tenant",
		CreatedAt:   testClock(time.Minute),
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)

	var journalMode string
	if err := store.sqlDB.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want %q", journalMode, "wal")
	}

	var foreignKeys int
	if err := store.sqlDB.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("read foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("foreign_keys = %d, want 1", foreignKeys)
	}

	var busyTimeout int
	if err := store.sqlDB.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("read busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", busyTimeout)
	}
}

func TestSetPartySignatureConcurrentSecondSigner(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		c := mustInsertContract(t, store, fmt.Sprintf("c-sign-race-%d", i))
		if err := store.InsertParty(ctx, tenantParty(c.ID)); err != nil {
			t.Fatalf("InsertParty() error = %v", err)
		}

		var (
			wg      sync.WaitGroup
			results [2]storage.SignatureResult
			errs    [2]error
		)
		for slot, userID := range []string{"user-landlord", "user-tenant"} {
			wg.Add(1)
			go func(slot int, userID string) {
				defer wg.Done()
				results[slot], errs[slot] = store.SetPartySignature(ctx, c.ID, userID, testClock(5*time.Minute))
			}(slot, userID)
		}
		wg.Wait()

		for slot, err := range errs {
			if err != nil {
				t.Fatalf("concurrent SetPartySignature(%d) error = %v", slot, err)
			}
		}
		promotions := 0
		for _, r := range results {
			if r.AlreadySigned {
				t.Fatalf("concurrent result = %+v, want fresh signature", r)
			}
			if r.Promoted {
				promotions++
			}
		}
		if promotions != 1 {
			t.Fatalf("promotions = %d, want exactly 1 (results %+v)", promotions, results)
		}

		got, err := store.GetContract(ctx, c.ID)
		if err != nil {
			t.Fatalf("GetContract() error = %v", err)
		}
		if got.Status != contract.StatusSigned {
			t.Fatalf("Status = %v, want %v", got.Status, contract.StatusSigned)
		}
	}
}

func TestInsertContractRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	want := mustInsertContract(t, store, "c-round-trip")

	got, err := store.GetContract(ctx, want.ID)
	if err != nil {
		t.Fatalf("GetContract() error = %v", err)
	}
	if got.Address != want.Address {
		t.Errorf("Address = %q, want %q", got.Address, want.Address)
	}
	if !got.StartDate.Equal(want.StartDate) || !got.EndDate.Equal(want.EndDate) {
		t.Errorf("period = %v..%v, want %v..%v", got.StartDate, got.EndDate, want.StartDate, want.EndDate)
	}
	if got.Rent != want.Rent {
		t.Errorf("Rent = %d, want %d", got.Rent, want.Rent)
	}
	if got.Deposit == nil || *got.Deposit != *want.Deposit {
		t.Errorf("Deposit = %v, want %d", got.Deposit, *want.Deposit)
	}
	if got.Status != contract.StatusDraft {
		t.Errorf("Status = %v, want %v", got.Status, contract.StatusDraft)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}

	parties, err := store.GetParties(ctx, want.ID)
	if err != nil {
		t.Fatalf("GetParties() error = %v", err)
	}
	if len(parties) != 1 {
		t.Fatalf("len(parties) = %d, want 1", len(parties))
	}
	if parties[0].Role != contract.RoleLandlord {
		t.Errorf("creator role = %v, want %v", parties[0].Role, contract.RoleLandlord)
	}
	if parties[0].SignedAt != nil {
		t.Errorf("creator SignedAt = %v, want nil", parties[0].SignedAt)
	}
}

func TestInsertContractDuplicate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	mustInsertContract(t, store, "c-dup")

	c, creator := testContract("c-dup")
	err := store.InsertContract(context.Background(), c, creator)
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("InsertContract() error = %v, want ErrAlreadyExists", err)
	}
}

func TestGetContractMissing(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	_, err := store.GetContract(context.Background(), "c-missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetContract() error = %v, want ErrNotFound", err)
	}
}

func TestContractWithoutDeposit(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	c, creator := testContract("c-no-deposit")
	c.Deposit = nil
	if err := store.InsertContract(ctx, c, creator); err != nil {
		t.Fatalf("InsertContract() error = %v", err)
	}

	got, err := store.GetContract(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetContract() error = %v", err)
	}
	if got.Deposit != nil {
		t.Errorf("Deposit = %v, want nil", got.Deposit)
	}
}

func TestListContractsForUser(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	first, creator := testContract("c-list-first")
	if err := store.InsertContract(ctx, first, creator); err != nil {
		t.Fatalf("InsertContract() error = %v", err)
	}
	second, secondCreator := testContract("c-list-second")
	second.CreatedAt = testClock(time.Hour)
	second.UpdatedAt = second.CreatedAt
	if err := store.InsertContract(ctx, second, secondCreator); err != nil {
		t.Fatalf("InsertContract() error = %v", err)
	}
	if err := store.InsertParty(ctx, tenantParty(first.ID)); err != nil {
		t.Fatalf("InsertParty() error = %v", err)
	}

	got, err := store.ListContractsForUser(ctx, "user-landlord")
	if err != nil {
		t.Fatalf("ListContractsForUser() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(contracts) = %d, want 2", len(got))
	}
	if got[0].ID != second.ID || got[1].ID != first.ID {
		t.Errorf("order = [%s, %s], want newest first [%s, %s]", got[0].ID, got[1].ID, second.ID, first.ID)
	}

	tenantView, err := store.ListContractsForUser(ctx, "user-tenant")
	if err != nil {
		t.Fatalf("ListContractsForUser() error = %v", err)
	}
	if len(tenantView) != 1 || tenantView[0].ID != first.ID {
		t.Fatalf("tenant contracts = %v, want just %s", tenantView, first.ID)
	}

	empty, err := store.ListContractsForUser(ctx, "user-stranger")
	if err != nil {
		t.Fatalf("ListContractsForUser() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("stranger contracts = %d, want 0", len(empty))
	}
}

func TestInsertPartyRoleTaken(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	c := mustInsertContract(t, store, "c-role-taken")

	duplicate := contract.Party{
		ContractID:  c.ID,
		Role:        contract.RoleLandlord,
		UserID:      "user-other",
		DisplayName: "Olle Other",
		CreatedAt:   testClock(time.Minute),
	}
	err := store.InsertParty(ctx, duplicate)
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("InsertParty() error = %v, want ErrAlreadyExists", err)
	}
}

func TestUpdateContractStatus(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	c := mustInsertContract(t, store, "c-status")

	at := testClock(2 * time.Minute)
	if err := store.UpdateContractStatus(ctx, c.ID, contract.StatusDraft, contract.StatusWaiting, at); err != nil {
		t.Fatalf("UpdateContractStatus() error = %v", err)
	}

	got, err := store.GetContract(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetContract() error = %v", err)
	}
	if got.Status != contract.StatusWaiting {
		t.Errorf("Status = %v, want %v", got.Status, contract.StatusWaiting)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, at)
	}

	err = store.UpdateContractStatus(ctx, c.ID, contract.StatusDraft, contract.StatusWaiting, at)
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("stale guard error = %v, want ErrConflict", err)
	}

	err = store.UpdateContractStatus(ctx, "c-status-missing", contract.StatusDraft, contract.StatusWaiting, at)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing contract error = %v, want ErrNotFound", err)
	}
}

func TestSetPartySignaturePromotesOnSecond(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	c := mustInsertContract(t, store, "c-sign")
	if err := store.InsertParty(ctx, tenantParty(c.ID)); err != nil {
		t.Fatalf("InsertParty() error = %v", err)
	}
	if err := store.UpdateContractStatus(ctx, c.ID, contract.StatusDraft, contract.StatusWaiting, testClock(time.Minute)); err != nil {
		t.Fatalf("UpdateContractStatus() error = %v", err)
	}

	first, err := store.SetPartySignature(ctx, c.ID, "user-landlord", testClock(5*time.Minute))
	if err != nil {
		t.Fatalf("SetPartySignature(first) error = %v", err)
	}
	if first.AlreadySigned || first.BothSigned || first.Promoted {
		t.Fatalf("first signature result = %+v, want all false", first)
	}

	midway, err := store.GetContract(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetContract() error = %v", err)
	}
	if midway.Status != contract.StatusWaiting {
		t.Fatalf("Status after first signature = %v, want %v", midway.Status, contract.StatusWaiting)
	}

	second, err := store.SetPartySignature(ctx, c.ID, "user-tenant", testClock(6*time.Minute))
	if err != nil {
		t.Fatalf("SetPartySignature(second) error = %v", err)
	}
	if second.AlreadySigned {
		t.Errorf("second AlreadySigned = true, want false")
	}
	if !second.BothSigned || !second.Promoted {
		t.Fatalf("second signature result = %+v, want BothSigned and Promoted", second)
	}

	got, err := store.GetContract(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetContract() error = %v", err)
	}
	if got.Status != contract.StatusSigned {
		t.Errorf("Status = %v, want %v", got.Status, contract.StatusSigned)
	}

	parties, err := store.GetParties(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetParties() error = %v", err)
	}
	for _, p := range parties {
		if p.SignedAt == nil {
			t.Errorf("party %s SignedAt = nil, want set", contract.RoleLabel(p.Role))
		}
	}
}

func TestSetPartySignatureDuplicateIsNoOp(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	c := mustInsertContract(t, store, "c-sign-dup")
	if err := store.InsertParty(ctx, tenantParty(c.ID)); err != nil {
		t.Fatalf("InsertParty() error = %v", err)
	}

	at := testClock(5 * time.Minute)
	if _, err := store.SetPartySignature(ctx, c.ID, "user-landlord", at); err != nil {
		t.Fatalf("SetPartySignature() error = %v", err)
	}
	repeat, err := store.SetPartySignature(ctx, c.ID, "user-landlord", testClock(10*time.Minute))
	if err != nil {
		t.Fatalf("repeat SetPartySignature() error = %v", err)
	}
	if !repeat.AlreadySigned {
		t.Errorf("repeat AlreadySigned = false, want true")
	}
	if repeat.BothSigned || repeat.Promoted {
		t.Errorf("repeat result = %+v, want no promotion", repeat)
	}

	parties, err := store.GetParties(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetParties() error = %v", err)
	}
	landlord, ok := contract.PartyForRole(parties, contract.RoleLandlord)
	if !ok {
		t.Fatal("landlord party missing")
	}
	if landlord.SignedAt == nil || !landlord.SignedAt.Equal(at) {
		t.Errorf("SignedAt = %v, want original %v", landlord.SignedAt, at)
	}
}

func TestSetPartySignatureUnknownParty(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	c := mustInsertContract(t, store, "c-sign-unknown")

	_, err := store.SetPartySignature(context.Background(), c.ID, "user-stranger", testClock(time.Minute))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("SetPartySignature() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteContract(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	c := mustInsertContract(t, store, "c-delete")
	inv := testInvite(c.ID, contract.RoleTenant)
	if err := store.InsertInvite(ctx, inv); err != nil {
		t.Fatalf("InsertInvite() error = %v", err)
	}

	if err := store.DeleteContract(ctx, c.ID); err != nil {
		t.Fatalf("DeleteContract() error = %v", err)
	}
	if _, err := store.GetContract(ctx, c.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetContract() after delete error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetInviteByToken(ctx, inv.Token); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetInviteByToken() after delete error = %v, want ErrNotFound", err)
	}
	parties, err := store.GetParties(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetParties() error = %v", err)
	}
	if len(parties) != 0 {
		t.Errorf("len(parties) after delete = %d, want 0", len(parties))
	}
}

func TestDeleteContractSigned(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	c := mustInsertContract(t, store, "c-delete-signed")
	if err := store.InsertParty(ctx, tenantParty(c.ID)); err != nil {
		t.Fatalf("InsertParty() error = %v", err)
	}
	if _, err := store.SetPartySignature(ctx, c.ID, "user-landlord", testClock(time.Minute)); err != nil {
		t.Fatalf("SetPartySignature() error = %v", err)
	}
	if _, err := store.SetPartySignature(ctx, c.ID, "user-tenant", testClock(2*time.Minute)); err != nil {
		t.Fatalf("SetPartySignature() error = %v", err)
	}

	err := store.DeleteContract(ctx, c.ID)
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("DeleteContract() on signed error = %v, want ErrConflict", err)
	}

	err = store.DeleteContract(ctx, "c-delete-missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("DeleteContract() on missing error = %v, want ErrNotFound", err)
	}
}

func testInvite(contractID string, role contract.Role) invite.Invite {
	return invite.Invite{
		Token:           "0123456789abcdef",
		ContractID:      contractID,
		Role:            role,
		CreatedByUserID: "user-landlord",
		Email:           "tova@example.com",
		CreatedAt:       testClock(time.Minute),
	}
}

func TestInviteRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	c := mustInsertContract(t, store, "c-invite")
	want := testInvite(c.ID, contract.RoleTenant)
	if err := store.InsertInvite(ctx, want); err != nil {
		t.Fatalf("InsertInvite() error = %v", err)
	}

	got, err := store.GetInviteByToken(ctx, want.Token)
	if err != nil {
		t.Fatalf("GetInviteByToken() error = %v", err)
	}
	if got.ContractID != want.ContractID {
		t.Errorf("ContractID = %q, want %q", got.ContractID, want.ContractID)
	}
	if got.Role != want.Role {
		t.Errorf("Role = %v, want %v", got.Role, want.Role)
	}
	if got.Email != want.Email {
		t.Errorf("Email = %q, want %q", got.Email, want.Email)
	}
	if got.RedeemedAt != nil || got.RedeemedByUserID != "" {
		t.Errorf("redemption state = (%v, %q), want unredeemed", got.RedeemedAt, got.RedeemedByUserID)
	}

	open, err := store.GetOpenInviteForRole(ctx, c.ID, contract.RoleTenant)
	if err != nil {
		t.Fatalf("GetOpenInviteForRole() error = %v", err)
	}
	if open.Token != want.Token {
		t.Errorf("open token = %q, want %q", open.Token, want.Token)
	}

	_, err = store.GetOpenInviteForRole(ctx, c.ID, contract.RoleLandlord)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetOpenInviteForRole(vacant role) error = %v, want ErrNotFound", err)
	}
}

func TestInsertInviteRoleTaken(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	c := mustInsertContract(t, store, "c-invite-dup")
	if err := store.InsertInvite(ctx, testInvite(c.ID, contract.RoleTenant)); err != nil {
		t.Fatalf("InsertInvite() error = %v", err)
	}

	second := testInvite(c.ID, contract.RoleTenant)
	second.Token = "fedcba9876543210"
	err := store.InsertInvite(ctx, second)
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("InsertInvite() duplicate role error = %v, want ErrAlreadyExists", err)
	}
}

func TestRedeemInvite(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	c := mustInsertContract(t, store, "c-redeem")
	inv := testInvite(c.ID, contract.RoleTenant)
	if err := store.InsertInvite(ctx, inv); err != nil {
		t.Fatalf("InsertInvite() error = %v", err)
	}

	at := testClock(30 * time.Minute)
	if err := store.RedeemInvite(ctx, inv.Token, tenantParty(c.ID), at); err != nil {
		t.Fatalf("RedeemInvite() error = %v", err)
	}

	redeemed, err := store.GetInviteByToken(ctx, inv.Token)
	if err != nil {
		t.Fatalf("GetInviteByToken() error = %v", err)
	}
	if redeemed.RedeemedAt == nil || !redeemed.RedeemedAt.Equal(at) {
		t.Errorf("RedeemedAt = %v, want %v", redeemed.RedeemedAt, at)
	}
	if redeemed.RedeemedByUserID != "user-tenant" {
		t.Errorf("RedeemedByUserID = %q, want %q", redeemed.RedeemedByUserID, "user-tenant")
	}

	got, err := store.GetContract(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetContract() error = %v", err)
	}
	if got.Status != contract.StatusWaiting {
		t.Errorf("Status = %v, want %v", got.Status, contract.StatusWaiting)
	}

	parties, err := store.GetParties(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetParties() error = %v", err)
	}
	if _, ok := contract.PartyForRole(parties, contract.RoleTenant); !ok {
		t.Error("tenant party missing after redemption")
	}

	_, err = store.GetOpenInviteForRole(ctx, c.ID, contract.RoleTenant)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetOpenInviteForRole() after redeem error = %v, want ErrNotFound", err)
	}
}

func TestRedeemInviteTwice(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	c := mustInsertContract(t, store, "c-redeem-twice")
	inv := testInvite(c.ID, contract.RoleTenant)
	if err := store.InsertInvite(ctx, inv); err != nil {
		t.Fatalf("InsertInvite() error = %v", err)
	}
	if err := store.RedeemInvite(ctx, inv.Token, tenantParty(c.ID), testClock(30*time.Minute)); err != nil {
		t.Fatalf("RedeemInvite() error = %v", err)
	}

	late := contract.Party{
		ContractID:  c.ID,
		Role:        contract.RoleTenant,
		UserID:      "user-late",
		DisplayName: "Lars Late",
		CreatedAt:   testClock(time.Hour),
	}
	err := store.RedeemInvite(ctx, inv.Token, late, testClock(time.Hour))
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("second RedeemInvite() error = %v, want ErrConflict", err)
	}

	parties, err := store.GetParties(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetParties() error = %v", err)
	}
	tenant, ok := contract.PartyForRole(parties, contract.RoleTenant)
	if !ok {
		t.Fatal("tenant party missing")
	}
	if tenant.UserID != "user-tenant" {
		t.Errorf("tenant UserID = %q, want first redeemer %q", tenant.UserID, "user-tenant")
	}
}

func TestRedeemInviteRoleAlreadyBound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	c := mustInsertContract(t, store, "c-redeem-bound")
	inv := testInvite(c.ID, contract.RoleTenant)
	if err := store.InsertInvite(ctx, inv); err != nil {
		t.Fatalf("InsertInvite() error = %v", err)
	}
	if err := store.InsertParty(ctx, tenantParty(c.ID)); err != nil {
		t.Fatalf("InsertParty() error = %v", err)
	}

	late := contract.Party{
		ContractID:  c.ID,
		Role:        contract.RoleTenant,
		UserID:      "user-late",
		DisplayName: "Lars Late",
		CreatedAt:   testClock(time.Hour),
	}
	err := store.RedeemInvite(ctx, inv.Token, late, testClock(time.Hour))
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("RedeemInvite() error = %v, want ErrConflict", err)
	}

	// Losing the party insert must roll back the redemption mark too.
	got, err := store.GetInviteByToken(ctx, inv.Token)
	if err != nil {
		t.Fatalf("GetInviteByToken() error = %v", err)
	}
	if got.RedeemedAt != nil {
		t.Errorf("RedeemedAt = %v, want nil after rolled-back redemption", got.RedeemedAt)
	}
}

func TestRedeemInviteMissingToken(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	c := mustInsertContract(t, store, "c-redeem-missing")

	err := store.RedeemInvite(context.Background(), "ffffffffffffffff", tenantParty(c.ID), testClock(time.Minute))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("RedeemInvite() error = %v, want ErrNotFound", err)
	}
}
