package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/renteasy/renteasy/internal/contract"
	"github.com/renteasy/renteasy/internal/contract/invite"
	"github.com/renteasy/renteasy/internal/storage"
)

// memStore is an in-memory storage.Store for service tests.
type memStore struct {
	mu        sync.Mutex
	contracts map[string]contract.Contract
	parties   map[string][]contract.Party
	invites   map[string]invite.Invite
}

func newMemStore() *memStore {
	return &memStore{
		contracts: make(map[string]contract.Contract),
		parties:   make(map[string][]contract.Party),
		invites:   make(map[string]invite.Invite),
	}
}

func (m *memStore) InsertContract(_ context.Context, c contract.Contract, creator contract.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contracts[c.ID]; ok {
		return storage.ErrAlreadyExists
	}
	m.contracts[c.ID] = c
	m.parties[c.ID] = []contract.Party{creator}
	return nil
}

func (m *memStore) GetContract(_ context.Context, contractID string) (contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[contractID]
	if !ok {
		return contract.Contract{}, storage.ErrNotFound
	}
	return c, nil
}

func (m *memStore) ListContractsForUser(_ context.Context, userID string) ([]contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []contract.Contract
	for id, parties := range m.parties {
		for _, p := range parties {
			if p.UserID == userID {
				result = append(result, m.contracts[id])
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *memStore) GetParties(_ context.Context, contractID string) ([]contract.Party, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parties := make([]contract.Party, len(m.parties[contractID]))
	copy(parties, m.parties[contractID])
	return parties, nil
}

func (m *memStore) InsertParty(_ context.Context, p contract.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.parties[p.ContractID] {
		if existing.Role == p.Role {
			return storage.ErrAlreadyExists
		}
	}
	m.parties[p.ContractID] = append(m.parties[p.ContractID], p)
	return nil
}

func (m *memStore) UpdateContractStatus(_ context.Context, contractID string, from, to contract.Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[contractID]
	if !ok {
		return storage.ErrNotFound
	}
	if c.Status != from {
		return storage.ErrConflict
	}
	c.Status = to
	c.UpdatedAt = at
	m.contracts[contractID] = c
	return nil
}

func (m *memStore) SetPartySignature(_ context.Context, contractID, userID string, at time.Time) (storage.SignatureResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parties := m.parties[contractID]
	index := -1
	for i, p := range parties {
		if p.UserID == userID {
			index = i
		}
	}
	if index < 0 {
		return storage.SignatureResult{}, storage.ErrNotFound
	}

	result := storage.SignatureResult{AlreadySigned: parties[index].SignedAt != nil}
	if !result.AlreadySigned {
		stamp := at
		parties[index].SignedAt = &stamp
	}
	signed := 0
	for _, p := range parties {
		if p.SignedAt != nil {
			signed++
		}
	}
	if signed == 2 {
		result.BothSigned = true
		c := m.contracts[contractID]
		if c.Status == contract.StatusDraft || c.Status == contract.StatusWaiting {
			c.Status = contract.StatusSigned
			c.UpdatedAt = at
			m.contracts[contractID] = c
			result.Promoted = true
		}
	}
	return result, nil
}

func (m *memStore) DeleteContract(_ context.Context, contractID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[contractID]
	if !ok {
		return storage.ErrNotFound
	}
	if c.Status != contract.StatusDraft && c.Status != contract.StatusWaiting {
		return storage.ErrConflict
	}
	delete(m.contracts, contractID)
	delete(m.parties, contractID)
	for token, inv := range m.invites {
		if inv.ContractID == contractID {
			delete(m.invites, token)
		}
	}
	return nil
}

func (m *memStore) InsertInvite(_ context.Context, inv invite.Invite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invites[inv.Token]; ok {
		return storage.ErrAlreadyExists
	}
	for _, existing := range m.invites {
		if existing.ContractID == inv.ContractID && existing.Role == inv.Role {
			return storage.ErrAlreadyExists
		}
	}
	m.invites[inv.Token] = inv
	return nil
}

func (m *memStore) GetInviteByToken(_ context.Context, token string) (invite.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[token]
	if !ok {
		return invite.Invite{}, storage.ErrNotFound
	}
	return inv, nil
}

func (m *memStore) GetOpenInviteForRole(_ context.Context, contractID string, role contract.Role) (invite.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invites {
		if inv.ContractID == contractID && inv.Role == role && inv.RedeemedAt == nil {
			return inv, nil
		}
	}
	return invite.Invite{}, storage.ErrNotFound
}

func (m *memStore) RedeemInvite(_ context.Context, token string, p contract.Party, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[token]
	if !ok {
		return storage.ErrNotFound
	}
	if inv.RedeemedAt != nil {
		return storage.ErrConflict
	}
	for _, existing := range m.parties[p.ContractID] {
		if existing.Role == p.Role {
			return storage.ErrConflict
		}
	}
	stamp := at
	inv.RedeemedAt = &stamp
	inv.RedeemedByUserID = p.UserID
	m.invites[token] = inv
	m.parties[p.ContractID] = append(m.parties[p.ContractID], p)
	c := m.contracts[p.ContractID]
	if c.Status == contract.StatusDraft {
		c.Status = contract.StatusWaiting
		c.UpdatedAt = at
		m.contracts[p.ContractID] = c
	}
	return nil
}
