package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/akademia-dev/college-api/internal/models"
	appErrors "github.com/akademia-dev/college-api/pkg/errors"
)

type mockAuthRepo struct {
	user             *models.User
	refreshTokens    map[string]*models.RefreshToken
	lastLoginUpdated bool
	revokedAll       bool
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.user == nil || m.user.Username != username {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id int64, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error {
	if m.user != nil && m.user.ID == id {
		m.user.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	m.revokedAll = true
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func newAuthFixture(user *models.User) (*AuthService, *mockAuthRepo) {
	repo := &mockAuthRepo{user: user, refreshTokens: make(map[string]*models.RefreshToken)}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: time.Hour * 24,
		Issuer:             "college-api",
	})
	return svc, repo
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	svc, repo := newAuthFixture(&models.User{ID: 123, Username: "admin", PasswordHash: string(password), Active: true, Role: models.RoleAdmin})

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(123), res.User.ID)
	assert.True(t, repo.lastLoginUpdated)
	assert.NotEmpty(t, repo.refreshTokens)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	svc, _ := newAuthFixture(&models.User{ID: 123, Username: "admin", PasswordHash: string(password), Active: true})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "wrong"})
	assertErrorCode(t, err, appErrors.ErrInvalidCredentials.Code)
}

func TestAuthServiceLoginUnknownUser(t *testing.T) {
	svc, _ := newAuthFixture(nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "password"})
	assertErrorCode(t, err, appErrors.ErrInvalidCredentials.Code)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	svc, _ := newAuthFixture(&models.User{ID: 123, Username: "admin", PasswordHash: string(password), Active: false})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "password"})
	assertErrorCode(t, err, appErrors.ErrInactiveAccount.Code)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	svc, repo := newAuthFixture(&models.User{ID: 7, Username: "admin", PasswordHash: "hash", Active: true, Role: models.RoleAdmin})
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: 7, Token: "token", ExpiresAt: time.Now().Add(time.Hour)}

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked, "used refresh token must be revoked")
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	svc, repo := newAuthFixture(&models.User{ID: 7, Username: "admin", Active: true})
	repo.refreshTokens["stale"] = &models.RefreshToken{ID: "rt1", UserID: 7, Token: "stale", ExpiresAt: time.Now().Add(-time.Minute)}

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	assertErrorCode(t, err, appErrors.ErrUnauthorized.Code)
}

func TestAuthServiceLogoutForeignToken(t *testing.T) {
	svc, repo := newAuthFixture(&models.User{ID: 7, Username: "admin", Active: true})
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: 99, Token: "token", ExpiresAt: time.Now().Add(time.Hour)}

	err := svc.Logout(context.Background(), "token", 7)
	assertErrorCode(t, err, appErrors.ErrForbidden.Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("old"), bcrypt.DefaultCost)
	svc, repo := newAuthFixture(&models.User{ID: 7, Username: "admin", PasswordHash: string(oldHash), Active: true})

	err := svc.ChangePassword(context.Background(), 7, models.ChangePasswordRequest{OldPassword: "old", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.NotEqual(t, string(oldHash), repo.user.PasswordHash)
	assert.True(t, repo.revokedAll, "sessions are invalidated on password change")
}

func TestValidateToken(t *testing.T) {
	svc, _ := newAuthFixture(nil)
	user := &models.User{ID: 7, Username: "admin", Role: models.RoleAdmin}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	_, err = svc.ValidateToken("not-a-token")
	assertErrorCode(t, err, appErrors.ErrUnauthorized.Code)
}
