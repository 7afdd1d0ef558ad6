package impl

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alone-wolf/rutify/internal/domain"
	"github.com/alone-wolf/rutify/internal/observability/metrics"
	"github.com/alone-wolf/rutify/internal/observability/middleware"
	"github.com/alone-wolf/rutify/internal/service"
	"github.com/alone-wolf/rutify/internal/store"
	"github.com/alone-wolf/rutify/internal/tokencodec"

	"github.com/google/uuid"
)

const (
	UserSessionTTL   = 7 * 24 * time.Hour
	userSessionUsage = "user_auth"
)

type AuthConfig struct {
	DefaultTokenTTL time.Duration
}

type AuthServiceImpl struct {
	Store     dataStore
	Passwords service.PasswordService
	Codec     *tokencodec.Codec

	cfg AuthConfig
	now func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

func NewAuthServiceImpl(st *store.Store, passwords service.PasswordService, codec *tokencodec.Codec, cfg AuthConfig) *AuthServiceImpl {
	return newAuthService(gormStoreAdapter{store: st}, passwords, codec, cfg)
}

func newAuthService(ds dataStore, passwords service.PasswordService, codec *tokencodec.Codec, cfg AuthConfig) *AuthServiceImpl {
	if cfg.DefaultTokenTTL <= 0 {
		cfg.DefaultTokenTTL = 24 * time.Hour
	}
	return &AuthServiceImpl{
		Store:     ds,
		Passwords: passwords,
		Codec:     codec,
		cfg:       cfg,
		now:       time.Now,
	}
}

type dataStore interface {
	storeTx
	WithTx(ctx context.Context, fn func(tx storeTx) error) error
}

type storeTx interface {
	Users() userStore
	Tokens() tokenStore
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
}

type tokenStore interface {
	Create(ctx context.Context, t *domain.Token) error
	AttachHash(ctx context.Context, id domain.TokenID, hash string) error
	ExistsAndValid(ctx context.Context, hash string) (bool, error)
	TouchLastUsed(ctx context.Context, hash string) error
	GetByID(ctx context.Context, id domain.TokenID) (*domain.Token, error)
	DeleteByID(ctx context.Context, id domain.TokenID) (bool, error)
	DeleteByHash(ctx context.Context, hash string) (int64, error)
	DeleteAllForOwner(ctx context.Context, owner domain.UserID, kind domain.TokenKind) (int64, error)
	ListByOwner(ctx context.Context, owner domain.UserID) ([]domain.Token, error)
	ListByUsage(ctx context.Context, usage string) ([]domain.Token, error)
	ListByKind(ctx context.Context, kind domain.TokenKind) ([]domain.Token, error)
	ListAll(ctx context.Context) ([]domain.Token, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

type gormStoreAdapter struct {
	store *store.Store
}

func (g gormStoreAdapter) WithTx(ctx context.Context, fn func(tx storeTx) error) error {
	if g.store == nil {
		return errors.New("nil store")
	}
	return g.store.WithTx(ctx, func(tx *store.Store) error {
		return fn(gormStoreAdapter{store: tx})
	})
}

func (g gormStoreAdapter) Users() userStore { return g.store.Users() }

func (g gormStoreAdapter) Tokens() tokenStore { return g.store.Tokens() }

// IssueNotifyToken creates a notify bearer whose subject is its own record
// id. The row is inserted with a placeholder digest, signed, then given its
// real digest inside one transaction.
func (a *AuthServiceImpl) IssueNotifyToken(ctx context.Context, usage string, ttl time.Duration, deviceInfo *string, ownerID *domain.UserID) (string, *domain.Token, error) {
	result := "success"
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues(string(domain.TokenKindNotifyBearer), result).Inc()
	}()

	usage = strings.TrimSpace(usage)
	if usage == "" {
		result = "invalid"
		return "", nil, domain.Invalid("usage", "is required")
	}
	if ttl <= 0 {
		ttl = a.cfg.DefaultTokenTTL
	}
	now := a.now().UTC().Truncate(time.Second)

	var (
		bearer string
		rec    *domain.Token
	)
	err := a.Store.WithTx(ctx, func(tx storeTx) error {
		rec = &domain.Token{
			TokenHash:  "pending-" + uuid.NewString(),
			Kind:       domain.TokenKindNotifyBearer,
			Usage:      usage,
			OwnerID:    ownerID,
			DeviceInfo: deviceInfo,
			CreatedAt:  now,
			ExpiresAt:  now.Add(ttl),
		}
		if err := tx.Tokens().Create(ctx, rec); err != nil {
			return err
		}
		signed, err := a.Codec.Issue(tokencodec.Claims{
			Subject:   strconv.FormatInt(rec.ID, 10),
			Usage:     usage,
			Kind:      domain.TokenKindNotifyBearer,
			IssuedAt:  now,
			ExpiresAt: rec.ExpiresAt,
			ID:        uuid.NewString(),
		})
		if err != nil {
			return err
		}
		hash := tokencodec.Hash(signed)
		if err := tx.Tokens().AttachHash(ctx, rec.ID, hash); err != nil {
			return err
		}
		rec.TokenHash = hash
		bearer = signed
		return nil
	})
	if err != nil {
		result = "failure"
		return "", nil, err
	}

	slog.Info("issued notify token",
		"token_id", rec.ID,
		"usage", usage,
		"expires_at", rec.ExpiresAt,
		"request_id", middleware.RequestIDFromContext(ctx),
		"trace_id", middleware.TraceIDFromContext(ctx),
	)
	return bearer, rec, nil
}

// IssueUserSession signs a session for user and records it so it can be revoked.
func (a *AuthServiceImpl) IssueUserSession(ctx context.Context, user *domain.User) (string, time.Time, error) {
	result := "success"
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues(string(domain.TokenKindUserSession), result).Inc()
	}()

	now := a.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(UserSessionTTL)
	signed, err := a.Codec.Issue(tokencodec.Claims{
		Subject:   user.ID.String(),
		Usage:     string(user.Role),
		Kind:      domain.TokenKindUserSession,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
		ID:        uuid.NewString(),
	})
	if err != nil {
		result = "failure"
		return "", time.Time{}, err
	}
	owner := user.ID
	rec := &domain.Token{
		TokenHash: tokencodec.Hash(signed),
		Kind:      domain.TokenKindUserSession,
		Usage:     userSessionUsage,
		OwnerID:   &owner,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := a.Store.Tokens().Create(ctx, rec); err != nil {
		result = "failure"
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Authorize accepts a bearer only if it verifies for kind and its record is
// present and unexpired. Every rejection is ErrUnauthorized; the cause is logged.
func (a *AuthServiceImpl) Authorize(ctx context.Context, bearer string, kind domain.TokenKind) (tokencodec.Claims, error) {
	result := "success"
	defer func() {
		metrics.AuthorizationsTotal.WithLabelValues(string(kind), result).Inc()
	}()

	reject := func(reason string) (tokencodec.Claims, error) {
		result = reason
		slog.Warn("authorization rejected",
			"kind", kind,
			"reason", reason,
			"request_id", middleware.RequestIDFromContext(ctx),
			"trace_id", middleware.TraceIDFromContext(ctx),
		)
		return tokencodec.Claims{}, domain.ErrUnauthorized
	}

	if bearer == "" {
		return reject("missing")
	}
	claims, err := a.Codec.Verify(bearer, kind)
	switch {
	case errors.Is(err, tokencodec.ErrExpired):
		return reject("expired")
	case errors.Is(err, tokencodec.ErrWrongKind):
		return reject("wrong_kind")
	case err != nil:
		return reject("invalid_signature")
	}

	ok, err := a.Store.Tokens().ExistsAndValid(ctx, tokencodec.Hash(bearer))
	if err != nil {
		result = "error"
		return tokencodec.Claims{}, err
	}
	if !ok {
		return reject("revoked")
	}
	return claims, nil
}

// TouchLastUsed is best effort; failures are logged and dropped.
func (a *AuthServiceImpl) TouchLastUsed(ctx context.Context, bearer string) {
	if err := a.Store.Tokens().TouchLastUsed(ctx, tokencodec.Hash(bearer)); err != nil {
		slog.Warn("failed to update token last_used_at",
			"err", err,
			"request_id", middleware.RequestIDFromContext(ctx),
		)
	}
}

func (a *AuthServiceImpl) Register(ctx context.Context, username, password, email string) (*domain.User, error) {
	result := "success"
	defer func() {
		metrics.AuthRegistrationsTotal.WithLabelValues(result).Inc()
	}()

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	switch {
	case username == "":
		result = "invalid"
		return nil, domain.Invalid("username", "is required")
	case len(username) > maxUsernameLength:
		result = "invalid"
		return nil, domain.Invalid("username", "is too long")
	case len(password) < minPasswordLength:
		result = "invalid"
		return nil, domain.Invalid("password", "must be at least 8 characters")
	case email == "" || !strings.Contains(email, "@"):
		result = "invalid"
		return nil, domain.Invalid("email", "is not a valid address")
	}

	digest, err := a.Passwords.Hash(password)
	if err != nil {
		result = "failure"
		return nil, err
	}
	now := a.now().UTC()
	u := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: digest,
		Email:        email,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.Store.Users().Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			result = "conflict"
		} else {
			result = "failure"
		}
		return nil, err
	}

	slog.Info("registered user",
		"user_id", u.ID,
		"request_id", middleware.RequestIDFromContext(ctx),
		"trace_id", middleware.TraceIDFromContext(ctx),
	)
	return u, nil
}

// Login answers an unknown user and a wrong password with the same error.
func (a *AuthServiceImpl) Login(ctx context.Context, username, password string) (*domain.User, string, time.Time, error) {
	result := "success"
	defer func() {
		metrics.AuthLoginsTotal.WithLabelValues(result).Inc()
	}()

	user, err := a.Store.Users().GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Spend the same hashing work as a real check.
			_, _ = a.Passwords.Verify(password, a.fallbackDigest())
			result = "invalid_credentials"
			return nil, "", time.Time{}, domain.ErrInvalidCredentials
		}
		result = "failure"
		return nil, "", time.Time{}, err
	}
	ok, err := a.Passwords.Verify(password, user.PasswordHash)
	if err != nil {
		slog.Error("stored password digest unreadable", "user_id", user.ID, "err", err)
	}
	if !ok {
		result = "invalid_credentials"
		return nil, "", time.Time{}, domain.ErrInvalidCredentials
	}

	bearer, expiresAt, err := a.IssueUserSession(ctx, user)
	if err != nil {
		result = "failure"
		return nil, "", time.Time{}, err
	}
	return user, bearer, expiresAt, nil
}

// fallbackDigest is a digest of a random password, verified against when the
// username is unknown so both login failures cost one hash.
func (a *AuthServiceImpl) fallbackDigest() string {
	a.dummyOnce.Do(func() {
		digest, err := a.Passwords.Hash(uuid.NewString())
		if err != nil {
			slog.Error("failed to prepare fallback password digest", "err", err)
			return
		}
		a.dummyDigest = digest
	})
	return a.dummyDigest
}

func (a *AuthServiceImpl) Profile(ctx context.Context, userID domain.UserID) (*domain.User, error) {
	return a.Store.Users().GetByID(ctx, userID)
}

// ListTokens returns the notify tokens the user created, newest first.
func (a *AuthServiceImpl) ListTokens(ctx context.Context, ownerID domain.UserID) ([]domain.Token, error) {
	all, err := a.Store.Tokens().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Token, 0, len(all))
	for _, t := range all {
		if t.Kind == domain.TokenKindNotifyBearer {
			out = append(out, t)
		}
	}
	return out, nil
}

// RevokeToken deletes a token owned by ownerID. A token owned by someone
// else is reported as not found.
func (a *AuthServiceImpl) RevokeToken(ctx context.Context, ownerID domain.UserID, id domain.TokenID) error {
	tok, err := a.Store.Tokens().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !tok.OwnedBy(ownerID) {
		return domain.ErrNotFound
	}
	deleted, err := a.Store.Tokens().DeleteByID(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	slog.Info("revoked token",
		"token_id", id,
		"user_id", ownerID,
		"request_id", middleware.RequestIDFromContext(ctx),
		"trace_id", middleware.TraceIDFromContext(ctx),
	)
	return nil
}

func (a *AuthServiceImpl) SweepExpired(ctx context.Context) (int64, error) {
	n, err := a.Store.Tokens().SweepExpired(ctx, a.now().UTC())
	if err != nil {
		return 0, err
	}
	metrics.TokensSweptTotal.Add(float64(n))
	return n, nil
}

// Logout deletes the session record behind bearer. Later requests with the
// same bearer fail authorization.
func (a *AuthServiceImpl) Logout(ctx context.Context, bearer string) error {
	n, err := a.Store.Tokens().DeleteByHash(ctx, tokencodec.Hash(bearer))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	slog.Info("user session ended",
		"request_id", middleware.RequestIDFromContext(ctx),
		"trace_id", middleware.TraceIDFromContext(ctx),
	)
	return nil
}

// LogoutAll deletes every session of ownerID. Notify tokens are untouched.
func (a *AuthServiceImpl) LogoutAll(ctx context.Context, ownerID domain.UserID) (int64, error) {
	n, err := a.Store.Tokens().DeleteAllForOwner(ctx, ownerID, domain.TokenKindUserSession)
	if err != nil {
		return 0, err
	}
	slog.Info("user sessions ended",
		"user_id", ownerID,
		"count", n,
		"request_id", middleware.RequestIDFromContext(ctx),
		"trace_id", middleware.TraceIDFromContext(ctx),
	)
	return n, nil
}

// ListAllTokens lists tokens of every owner. Only admins may call it.
func (a *AuthServiceImpl) ListAllTokens(ctx context.Context, adminID domain.UserID, filter service.TokenFilter) ([]domain.Token, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, domain.Invalid("kind", "is not a token type")
	}
	u, err := a.Store.Users().GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrForbidden
		}
		return nil, err
	}
	if u.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}

	var tokens []domain.Token
	switch {
	case filter.Kind != "":
		tokens, err = a.Store.Tokens().ListByKind(ctx, filter.Kind)
	case filter.Usage != "":
		tokens, err = a.Store.Tokens().ListByUsage(ctx, filter.Usage)
	default:
		tokens, err = a.Store.Tokens().ListAll(ctx)
	}
	if err != nil {
		return nil, err
	}
	if filter.Kind == "" || filter.Usage == "" {
		return tokens, nil
	}
	out := tokens[:0]
	for _, t := range tokens {
		if t.Usage == filter.Usage {
			out = append(out, t)
		}
	}
	return out, nil
}
