package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentgate/exam-backend/internal/config"
	"github.com/talentgate/exam-backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

var errNoAdmin = pgx.ErrNoRows

type fakeRoles map[int][]string

func (f fakeRoles) GetPermissionsByRoleID(_ context.Context, roleID int) ([]string, error) {
	return f[roleID], nil
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeAdmins) {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour, BcryptCost: bcrypt.MinCost}
	admins := &fakeAdmins{admins: map[string]*model.Admin{}}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	svc := NewAuthService(cfg, admins, fakeRoles{1: {string(model.PermissionResultsRead)}}, rdb)
	svc.now = func() time.Time { return testNow }

	hash, err := svc.HashPassword("correct horse")
	require.NoError(t, err)
	admins.admins["hr@example.com"] = &model.Admin{ID: 4, Email: "hr@example.com", Name: "HR", PasswordHash: hash, RoleID: 1}
	return svc, admins
}

func TestLoginIssuesTokenWithPermissions(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), "hr@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Admin.ID)
	assert.Equal(t, []string{"results:read"}, resp.Permissions)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAdmin, claims.TokenType)
	assert.Equal(t, 4, claims.UserID)
	assert.Equal(t, "4", claims.Subject)
	assert.True(t, claims.HasPermission(model.PermissionResultsRead))
	assert.False(t, claims.HasPermission(model.PermissionIntegrityRead))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, admins := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "hr@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	admins.err = errors.New("db down")
	_, err = svc.Login(ctx, "hr@example.com", "correct horse")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsExpiredAndForeignTokens(t *testing.T) {
	svc, _ := newAuthFixture(t)

	token, err := svc.GenerateAdminToken(4, 1, nil)
	require.NoError(t, err)

	svc.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)

	other := NewAuthService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour}, nil, nil, nil)
	other.now = func() time.Time { return testNow }
	foreign, err := other.GenerateAdminToken(4, 1, nil)
	require.NoError(t, err)
	svc.now = func() time.Time { return testNow }
	_, err = svc.ValidateToken(foreign)
	assert.Error(t, err)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	token, err := svc.GenerateAdminToken(4, 1, nil)
	require.NoError(t, err)
	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	require.NoError(t, svc.CheckActive(ctx, claims))

	require.NoError(t, svc.Logout(ctx, claims))
	assert.ErrorIs(t, svc.CheckActive(ctx, claims), ErrTokenRevoked)

	other, err := svc.GenerateAdminToken(4, 1, nil)
	require.NoError(t, err)
	otherClaims, err := svc.ValidateToken(other)
	require.NoError(t, err)
	assert.NoError(t, svc.CheckActive(ctx, otherClaims), "only the signed-out token is revoked")
}
