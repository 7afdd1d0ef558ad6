package store

import (
	"context"
	"time"

	"github.com/alone-wolf/rutify/internal/domain"

	"gorm.io/gorm"
)

// TokenStore owns token records. Expiry is always a query predicate; only
// SweepExpired and the Delete* methods remove rows.
type TokenStore struct{ db *gorm.DB }

func (s *Store) Tokens() *TokenStore { return &TokenStore{s.DB} }

const newestFirst = "created_at desc, id desc"

func (ts *TokenStore) Create(ctx context.Context, t *domain.Token) error {
	if err := ts.ensureHashFree(ctx, t.TokenHash, 0); err != nil {
		return err
	}
	return wrap("tokens.create", ts.db.WithContext(ctx).Create(t).Error)
}

// AttachHash sets the digest of a record created moments earlier in the same
// transaction, once its id is known and the bearer string has been signed.
func (ts *TokenStore) AttachHash(ctx context.Context, id domain.TokenID, hash string) error {
	if err := ts.ensureHashFree(ctx, hash, id); err != nil {
		return err
	}
	tx := ts.db.WithContext(ctx).
		Model(&domain.Token{}).
		Where("id = ?", id).
		Update("token_hash", hash)
	if tx.Error != nil {
		return wrap("tokens.attach_hash", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (ts *TokenStore) ensureHashFree(ctx context.Context, hash string, exceptID domain.TokenID) error {
	var n int64
	q := ts.db.WithContext(ctx).Model(&domain.Token{}).Where("token_hash = ?", hash)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return wrap("tokens.hash_lookup", err)
	}
	if n > 0 {
		return domain.Conflict("token")
	}
	return nil
}

func (ts *TokenStore) ExistsAndValid(ctx context.Context, hash string) (bool, error) {
	var n int64
	err := ts.db.WithContext(ctx).
		Model(&domain.Token{}).
		Where("token_hash = ? AND expires_at > ?", hash, time.Now().UTC()).
		Count(&n).Error
	if err != nil {
		return false, wrap("tokens.exists", err)
	}
	return n > 0, nil
}

func (ts *TokenStore) TouchLastUsed(ctx context.Context, hash string) error {
	return wrap("tokens.touch", ts.db.WithContext(ctx).
		Model(&domain.Token{}).
		Where("token_hash = ?", hash).
		Update("last_used_at", time.Now().UTC()).Error)
}

func (ts *TokenStore) GetByID(ctx context.Context, id domain.TokenID) (*domain.Token, error) {
	var t domain.Token
	if err := ts.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, wrap("tokens.get", err)
	}
	return &t, nil
}

func (ts *TokenStore) GetByHash(ctx context.Context, hash string) (*domain.Token, error) {
	var t domain.Token
	if err := ts.db.WithContext(ctx).First(&t, "token_hash = ?", hash).Error; err != nil {
		return nil, wrap("tokens.get_by_hash", err)
	}
	return &t, nil
}

func (ts *TokenStore) DeleteByID(ctx context.Context, id domain.TokenID) (bool, error) {
	tx := ts.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Token{})
	if tx.Error != nil {
		return false, wrap("tokens.delete", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (ts *TokenStore) DeleteByHash(ctx context.Context, hash string) (int64, error) {
	tx := ts.db.WithContext(ctx).Where("token_hash = ?", hash).Delete(&domain.Token{})
	return tx.RowsAffected, wrap("tokens.delete_by_hash", tx.Error)
}

// DeleteAllForOwner removes every token of one kind that belongs to owner.
func (ts *TokenStore) DeleteAllForOwner(ctx context.Context, owner domain.UserID, kind domain.TokenKind) (int64, error) {
	tx := ts.db.WithContext(ctx).Where("owner_id = ? AND token_type = ?", owner, kind).Delete(&domain.Token{})
	return tx.RowsAffected, wrap("tokens.delete_for_owner", tx.Error)
}

// SweepExpired removes records whose expiry is strictly before now.
func (ts *TokenStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	tx := ts.db.WithContext(ctx).Where("expires_at < ?", now.UTC()).Delete(&domain.Token{})
	return tx.RowsAffected, wrap("tokens.sweep", tx.Error)
}

func (ts *TokenStore) ListByOwner(ctx context.Context, owner domain.UserID) ([]domain.Token, error) {
	return ts.list(ctx, "tokens.list_by_owner", "owner_id = ?", owner)
}

func (ts *TokenStore) ListByUsage(ctx context.Context, usage string) ([]domain.Token, error) {
	return ts.list(ctx, "tokens.list_by_usage", "usage = ?", usage)
}

func (ts *TokenStore) ListByKind(ctx context.Context, kind domain.TokenKind) ([]domain.Token, error) {
	return ts.list(ctx, "tokens.list_by_kind", "token_type = ?", kind)
}

func (ts *TokenStore) ListAll(ctx context.Context) ([]domain.Token, error) {
	return ts.list(ctx, "tokens.list_all", "1 = 1")
}

func (ts *TokenStore) list(ctx context.Context, op string, query string, args ...any) ([]domain.Token, error) {
	var out []domain.Token
	if err := ts.db.WithContext(ctx).Where(query, args...).Order(newestFirst).Find(&out).Error; err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}
