package market

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"synthnet/crypto"
	"synthnet/storage"
)

// Store persists positions in a key-value database, one record per user,
// namespaced by market so two engines can share a backend.
type Store struct {
	db     storage.Database
	prefix []byte
}

type storedPosition struct {
	Collateral *big.Int
	Debt       *big.Int
}

// NewStore constructs a position store for the named market.
func NewStore(db storage.Database, market string) *Store {
	return &Store{db: db, prefix: []byte("market/" + market + "/position/")}
}

func (s *Store) key(addr crypto.Address) []byte {
	buf := make([]byte, len(s.prefix)+len(addr.Bytes()))
	copy(buf, s.prefix)
	copy(buf[len(s.prefix):], addr.Bytes())
	return buf
}

// GetPosition loads a position, returning nil when the user has none yet.
func (s *Store) GetPosition(addr crypto.Address) (*Position, error) {
	raw, err := s.db.Get(s.key(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	return &Position{Collateral: stored.Collateral, Debt: stored.Debt}, nil
}

// PutPosition writes the position record.
func (s *Store) PutPosition(addr crypto.Address, pos *Position) error {
	stored := storedPosition{Collateral: big.NewInt(0), Debt: big.NewInt(0)}
	if pos != nil {
		if pos.Collateral != nil {
			stored.Collateral = pos.Collateral
		}
		if pos.Debt != nil {
			stored.Debt = pos.Debt
		}
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return s.db.Put(s.key(addr), encoded)
}

// MemState is an in-memory position table used by tests and by markets that
// run without a persistent backend.
type MemState struct {
	mu        sync.RWMutex
	positions map[string]*Position
}

func NewMemState() *MemState {
	return &MemState{positions: make(map[string]*Position)}
}

func (m *MemState) GetPosition(addr crypto.Address) (*Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.positions[string(addr.Bytes())]
	if !ok {
		return nil, nil
	}
	return pos.Clone(), nil
}

func (m *MemState) PutPosition(addr crypto.Address, pos *Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[string(addr.Bytes())] = pos.Clone()
	return nil
}
