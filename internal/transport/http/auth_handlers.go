package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/alone-wolf/rutify/internal/domain"
	"github.com/alone-wolf/rutify/internal/dto"
	"github.com/alone-wolf/rutify/internal/netutil"
	"github.com/alone-wolf/rutify/internal/service"

	"github.com/go-chi/chi/v5"
)

const maxTokenTTLHours = 24 * 365

type authHandlers struct {
	svc service.AuthService
}

func userResponse(u *domain.User) dto.UserResponse {
	return dto.UserResponse{
		UserID:    u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func (h authHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	u, err := h.svc.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, userResponse(u))
}

func (h authHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	u, bearer, expiresAt, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, dto.LoginResponse{
		UserID:    u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		JWTToken:  bearer,
		ExpiresAt: expiresAt,
	})
}

func (h authHandlers) profile(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.svc.Profile(r.Context(), uid)
	if err != nil {
		writeError(w, r, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, userResponse(u))
}

func (h authHandlers) createToken(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req dto.CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var ttl time.Duration
	if req.ExpiresInHours != nil {
		if *req.ExpiresInHours <= 0 || *req.ExpiresInHours > maxTokenTTLHours {
			writeMessage(w, http.StatusBadRequest, "expires_in_hours: out of range")
			return
		}
		ttl = time.Duration(*req.ExpiresInHours) * time.Hour
	}

	bearer, tok, err := h.svc.IssueNotifyToken(r.Context(), req.Usage, ttl, netutil.DeviceInfo(req.DeviceInfo, r), &uid)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, dto.CreateTokenResponse{
		Token:     bearer,
		TokenID:   tok.ID,
		Usage:     tok.Usage,
		TokenType: string(tok.Kind),
		ExpiresAt: tok.ExpiresAt,
	})
}

func (h authHandlers) listTokens(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tokens, err := h.svc.ListTokens(r.Context(), uid)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	out := make([]dto.TokenInfo, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, dto.NewTokenInfo(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h authHandlers) revokeToken(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "token not found")
		return
	}
	if err := h.svc.RevokeToken(r.Context(), uid, id); err != nil {
		writeError(w, r, err, "token not found")
		return
	}
	writeOK(w)
}

func (h authHandlers) logout(w http.ResponseWriter, r *http.Request) {
	bearer, ok := bearerFrom(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Logout(r.Context(), bearer); err != nil {
		writeError(w, r, err, "session not found")
		return
	}
	writeOK(w)
}

func (h authHandlers) logoutAll(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	n, err := h.svc.LogoutAll(r.Context(), uid)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeData(w, dto.DeletedResponse{DeletedCount: n}, nil)
}

func (h authHandlers) listAllTokens(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	q := r.URL.Query()
	filter := service.TokenFilter{
		Usage: q.Get("usage"),
		Kind:  domain.TokenKind(q.Get("kind")),
	}
	tokens, err := h.svc.ListAllTokens(r.Context(), uid, filter)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	out := make([]dto.AdminTokenInfo, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, dto.NewAdminTokenInfo(t))
	}
	writeData(w, out, dto.ListMeta{Total: int64(len(out))})
}
