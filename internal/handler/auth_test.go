package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"facturador/internal/config"
	"facturador/internal/dto"
	"facturador/internal/middleware"
	"facturador/internal/model"
	"facturador/internal/repository"
	"facturador/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ── In-memory repository stub ─────────────────────────────────────────────────

type stubUserRepo struct {
	users map[string]*model.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*model.User)}
}

func (r *stubUserRepo) Create(_ context.Context, u *model.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users[u.Username] = u
	return nil
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := r.users[username]
	if !ok || !u.Active {
		return nil, errors.New("not found")
	}
	return u, nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.New("not found")
}

var _ repository.UserRepository = (*stubUserRepo)(nil)

// ── Helpers ───────────────────────────────────────────────────────────────────

const testSecret = "test_jwt_secret_32_chars_minimum!"

func newTestCfg() *config.Config {
	return &config.Config{
		JWTSecret:          testSecret,
		JWTExpirationHours: 8,
		JWTRefreshHours:    24,
	}
}

func seedUser(t *testing.T, repo *stubUserRepo, username, password, role string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{
		ID: uuid.New(), Username: username, Name: "Test User",
		PasswordHash: string(hash), Role: role, Active: true,
	}
	repo.users[username] = u
	return u
}

func signToken(t *testing.T, userID, role string, dur time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID, "username": "testuser", "role": role,
		"exp": time.Now().Add(dur).Unix(), "iat": time.Now().Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func doLoginRequest(t *testing.T, svc service.AuthService, req dto.LoginRequest) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	authH := NewAuthHandler(svc)
	r.POST("/login", authH.Login)

	body, _ := json.Marshal(req)
	w := httptest.NewRecorder()
	httpReq, _ := http.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, httpReq)
	return w
}

func ginTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.JWTAuth(testSecret))
	r.GET("/protected", func(c *gin.Context) {
		claims := middleware.GetClaims(c)
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID, "role": claims.Role})
	})
	r.DELETE("/supervised", middleware.RequireRole(middleware.RoleSupervisor, middleware.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func doAuthedRequest(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

// ── Tests: login ──────────────────────────────────────────────────────────────

func TestLoginSuccess(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "admin", "password123", middleware.RoleAdmin)
	svc := service.NewAuthService(repo, newTestCfg())

	w := doLoginRequest(t, svc, dto.LoginRequest{Username: "admin", Password: "password123"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, middleware.RoleAdmin, resp.User.Role)
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "cashier1", "correctpass", middleware.RoleCashier)
	svc := service.NewAuthService(repo, newTestCfg())

	w := doLoginRequest(t, svc, dto.LoginRequest{Username: "cashier1", Password: "wrongpass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginUnknownUser(t *testing.T) {
	repo := newStubUserRepo()
	svc := service.NewAuthService(repo, newTestCfg())

	w := doLoginRequest(t, svc, dto.LoginRequest{Username: "ghost", Password: "anypass123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginInactiveUser(t *testing.T) {
	repo := newStubUserRepo()
	u := seedUser(t, repo, "retired", "password123", middleware.RoleCashier)
	u.Active = false
	svc := service.NewAuthService(repo, newTestCfg())

	w := doLoginRequest(t, svc, dto.LoginRequest{Username: "retired", Password: "password123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginValidationFailure(t *testing.T) {
	repo := newStubUserRepo()
	svc := service.NewAuthService(repo, newTestCfg())

	w := doLoginRequest(t, svc, dto.LoginRequest{Username: "u", Password: "12"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

// ── Tests: refresh ────────────────────────────────────────────────────────────

func TestRefreshSuccess(t *testing.T) {
	repo := newStubUserRepo()
	u := seedUser(t, repo, "super1", "pass1234", middleware.RoleSupervisor)
	svc := service.NewAuthService(repo, newTestCfg())

	loginW := doLoginRequest(t, svc, dto.LoginRequest{Username: "super1", Password: "pass1234"})
	require.Equal(t, http.StatusOK, loginW.Code)
	var loginResp dto.LoginResponse
	require.NoError(t, json.Unmarshal(loginW.Body.Bytes(), &loginResp))

	resp, err := svc.Refresh(context.Background(), loginResp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, u.Username, resp.User.Username)
}

func TestRefreshInvalidToken(t *testing.T) {
	repo := newStubUserRepo()
	svc := service.NewAuthService(repo, newTestCfg())

	_, err := svc.Refresh(context.Background(), "this.is.garbage")
	assert.Error(t, err)
}

func TestRefreshExpiredToken(t *testing.T) {
	repo := newStubUserRepo()
	u := seedUser(t, repo, "super1", "pass1234", middleware.RoleSupervisor)
	svc := service.NewAuthService(repo, newTestCfg())

	expired := signToken(t, u.ID.String(), u.Role, -time.Hour)
	_, err := svc.Refresh(context.Background(), expired)
	assert.Error(t, err)
}

// ── Tests: middleware ─────────────────────────────────────────────────────────

func TestJWTAuthMissingToken(t *testing.T) {
	w := doAuthedRequest(ginTestRouter(), http.MethodGet, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuthValidToken(t *testing.T) {
	userID := uuid.NewString()
	token := signToken(t, userID, middleware.RoleCashier, time.Hour)

	w := doAuthedRequest(ginTestRouter(), http.MethodGet, "/protected", token)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, userID, body["user_id"])
	assert.Equal(t, middleware.RoleCashier, body["role"])
}

func TestJWTAuthExpiredToken(t *testing.T) {
	token := signToken(t, uuid.NewString(), middleware.RoleCashier, -time.Minute)
	w := doAuthedRequest(ginTestRouter(), http.MethodGet, "/protected", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuthWrongSecret(t *testing.T) {
	claims := jwt.MapClaims{
		"user_id": uuid.NewString(), "role": middleware.RoleAdmin,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("a_completely_different_secret!!!"))
	require.NoError(t, err)

	w := doAuthedRequest(ginTestRouter(), http.MethodGet, "/protected", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoleForbidsCashier(t *testing.T) {
	token := signToken(t, uuid.NewString(), middleware.RoleCashier, time.Hour)
	w := doAuthedRequest(ginTestRouter(), http.MethodDelete, "/supervised", token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRoleAllowsSupervisor(t *testing.T) {
	token := signToken(t, uuid.NewString(), middleware.RoleSupervisor, time.Hour)
	w := doAuthedRequest(ginTestRouter(), http.MethodDelete, "/supervised", token)
	assert.Equal(t, http.StatusOK, w.Code)
}
