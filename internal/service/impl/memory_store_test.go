package impl

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/alone-wolf/rutify/internal/domain"
)

type memoryStore struct {
	mu     sync.Mutex
	users  map[domain.UserID]*domain.User
	tokens map[domain.TokenID]*domain.Token
	nextID domain.TokenID

	failAttach error
	failExists error
}

type storeSnapshot struct {
	users  map[domain.UserID]*domain.User
	tokens map[domain.TokenID]*domain.Token
	nextID domain.TokenID
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:  make(map[domain.UserID]*domain.User),
		tokens: make(map[domain.TokenID]*domain.Token),
	}
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(tx storeTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(memoryTx{store: m, inTx: true}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

func (m *memoryStore) Users() userStore { return &memoryUserStore{store: m} }

func (m *memoryStore) Tokens() tokenStore { return &memoryTokenStore{store: m} }

func (m *memoryStore) snapshot() storeSnapshot {
	users := make(map[domain.UserID]*domain.User, len(m.users))
	for id, u := range m.users {
		copy := *u
		users[id] = &copy
	}
	tokens := make(map[domain.TokenID]*domain.Token, len(m.tokens))
	for id, t := range m.tokens {
		copy := *t
		tokens[id] = &copy
	}
	return storeSnapshot{users: users, tokens: tokens, nextID: m.nextID}
}

func (m *memoryStore) restore(s storeSnapshot) {
	m.users = s.users
	m.tokens = s.tokens
	m.nextID = s.nextID
}

func (m *memoryStore) tokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

func (m *memoryStore) tokenByID(id domain.TokenID) (*domain.Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil, false
	}
	copy := *t
	return &copy, true
}

type memoryTx struct {
	store *memoryStore
	inTx  bool
}

func (m memoryTx) Users() userStore { return &memoryUserStore{store: m.store, inTx: m.inTx} }

func (m memoryTx) Tokens() tokenStore { return &memoryTokenStore{store: m.store, inTx: m.inTx} }

type memoryUserStore struct {
	store *memoryStore
	inTx  bool
}

func (s *memoryUserStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.store.mu.Lock()
	return s.store.mu.Unlock
}

func (s *memoryUserStore) Create(ctx context.Context, u *domain.User) error {
	defer s.lock()()
	for _, existing := range s.store.users {
		if existing.Username == u.Username {
			return domain.Conflict("username")
		}
	}
	copy := *u
	s.store.users[u.ID] = &copy
	return nil
}

func (s *memoryUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	defer s.lock()()
	for _, u := range s.store.users {
		if u.Username == username {
			copy := *u
			return &copy, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memoryUserStore) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	defer s.lock()()
	u, ok := s.store.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copy := *u
	return &copy, nil
}

type memoryTokenStore struct {
	store *memoryStore
	inTx  bool
}

func (s *memoryTokenStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.store.mu.Lock()
	return s.store.mu.Unlock
}

func (s *memoryTokenStore) Create(ctx context.Context, t *domain.Token) error {
	defer s.lock()()
	for _, existing := range s.store.tokens {
		if existing.TokenHash == t.TokenHash {
			return domain.Conflict("token")
		}
	}
	s.store.nextID++
	t.ID = s.store.nextID
	copy := *t
	s.store.tokens[t.ID] = &copy
	return nil
}

func (s *memoryTokenStore) AttachHash(ctx context.Context, id domain.TokenID, hash string) error {
	defer s.lock()()
	if s.store.failAttach != nil {
		return s.store.failAttach
	}
	t, ok := s.store.tokens[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.TokenHash = hash
	return nil
}

func (s *memoryTokenStore) ExistsAndValid(ctx context.Context, hash string) (bool, error) {
	defer s.lock()()
	if s.store.failExists != nil {
		return false, s.store.failExists
	}
	now := time.Now()
	for _, t := range s.store.tokens {
		if t.TokenHash == hash && t.ExpiresAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryTokenStore) TouchLastUsed(ctx context.Context, hash string) error {
	defer s.lock()()
	for _, t := range s.store.tokens {
		if t.TokenHash == hash {
			now := time.Now().UTC()
			t.LastUsedAt = &now
		}
	}
	return nil
}

func (s *memoryTokenStore) GetByID(ctx context.Context, id domain.TokenID) (*domain.Token, error) {
	defer s.lock()()
	t, ok := s.store.tokens[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copy := *t
	return &copy, nil
}

func (s *memoryTokenStore) DeleteByID(ctx context.Context, id domain.TokenID) (bool, error) {
	defer s.lock()()
	_, ok := s.store.tokens[id]
	delete(s.store.tokens, id)
	return ok, nil
}

func (s *memoryTokenStore) ListByOwner(ctx context.Context, owner domain.UserID) ([]domain.Token, error) {
	defer s.lock()()
	var out []domain.Token
	for _, t := range s.store.tokens {
		if t.OwnedBy(owner) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memoryTokenStore) DeleteByHash(ctx context.Context, hash string) (int64, error) {
	defer s.lock()()
	var n int64
	for id, t := range s.store.tokens {
		if t.TokenHash == hash {
			delete(s.store.tokens, id)
			n++
		}
	}
	return n, nil
}

func (s *memoryTokenStore) DeleteAllForOwner(ctx context.Context, owner domain.UserID, kind domain.TokenKind) (int64, error) {
	defer s.lock()()
	var n int64
	for id, t := range s.store.tokens {
		if t.OwnedBy(owner) && t.Kind == kind {
			delete(s.store.tokens, id)
			n++
		}
	}
	return n, nil
}

func (s *memoryTokenStore) ListByUsage(ctx context.Context, usage string) ([]domain.Token, error) {
	return s.filter(func(t *domain.Token) bool { return t.Usage == usage }), nil
}

func (s *memoryTokenStore) ListByKind(ctx context.Context, kind domain.TokenKind) ([]domain.Token, error) {
	return s.filter(func(t *domain.Token) bool { return t.Kind == kind }), nil
}

func (s *memoryTokenStore) ListAll(ctx context.Context) ([]domain.Token, error) {
	return s.filter(func(*domain.Token) bool { return true }), nil
}

func (s *memoryTokenStore) filter(keep func(*domain.Token) bool) []domain.Token {
	defer s.lock()()
	var out []domain.Token
	for _, t := range s.store.tokens {
		if keep(t) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *memoryTokenStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	defer s.lock()()
	var n int64
	for id, t := range s.store.tokens {
		if t.ExpiresAt.Before(now) {
			delete(s.store.tokens, id)
			n++
		}
	}
	return n, nil
}

var errBoom = errors.New("boom")
