package state

import (
	"bytes"
	"sort"
	"sync"

	"github.com/dedis/tokenlottery/address"
)

// MemStore keeps accounts in memory.
type MemStore struct {
	sync.RWMutex
	accounts map[address.Address]*Account
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{accounts: make(map[address.Address]*Account)}
}

// Get implements Store.
func (s *MemStore) Get(addr address.Address) (*Account, error) {
	s.RLock()
	defer s.RUnlock()
	acct, ok := s.accounts[addr]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acct.Copy(), nil
}

// Apply implements Store.
func (s *MemStore) Apply(changes []Change) error {
	s.Lock()
	defer s.Unlock()
	for _, ch := range changes {
		s.accounts[ch.Address] = ch.Account.Copy()
	}
	return nil
}

// ForEach implements Store.
func (s *MemStore) ForEach(fn func(addr address.Address, acct *Account) error) error {
	s.RLock()
	keys := make([]address.Address, 0, len(s.accounts))
	for k := range s.accounts {
		keys = append(keys, k)
	}
	s.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})
	for _, k := range keys {
		acct, err := s.Get(k)
		if err != nil {
			return err
		}
		if err := fn(k, acct); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of accounts.
func (s *MemStore) Len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.accounts)
}
