package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/talentgate/exam-backend/internal/config"
	"github.com/talentgate/exam-backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("invalid token claims")
	ErrTokenRevoked       = errors.New("token revoked")
)

// TokenTypeAdmin marks tokens issued to recruiters and HR staff.
const TokenTypeAdmin = "admin"

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType   string   `json:"token_type"`
	UserID      int      `json:"user_id"`
	RoleID      int      `json:"role_id"`
	Permissions []string `json:"permissions,omitempty"`
}

// HasPermission reports whether the token grants perm.
func (c *Claims) HasPermission(perm model.Permission) bool {
	for _, p := range c.Permissions {
		if p == string(perm) {
			return true
		}
	}
	return false
}

// AuthService handles admin authentication and JWTs.
type AuthService struct {
	cfg    *config.Config
	admins AdminStore
	roles  PermissionStore
	rdb    *redis.Client
	now    func() time.Time
}

// NewAuthService creates a new AuthService. rdb backs sign-out and may be
// nil, in which case tokens stay valid until they expire.
func NewAuthService(cfg *config.Config, admins AdminStore, roles PermissionStore, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, admins: admins, roles: roles, rdb: rdb, now: time.Now}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Login checks an admin's credentials and issues a token carrying the
// role's permissions.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.AdminLoginResponse, error) {
	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	if err := s.CheckPassword(admin.PasswordHash, password); err != nil {
		return nil, err
	}

	permissions, err := s.roles.GetPermissionsByRoleID(ctx, admin.RoleID)
	if err != nil {
		return nil, fmt.Errorf("get permissions: %w", err)
	}
	if permissions == nil {
		permissions = []string{}
	}

	token, err := s.GenerateAdminToken(admin.ID, admin.RoleID, permissions)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &model.AdminLoginResponse{Token: token, Admin: *admin, Permissions: permissions}, nil
}

// GenerateAdminToken creates a JWT for an admin with permissions embedded.
func (s *AuthService) GenerateAdminToken(adminID, roleID int, permissions []string) (string, error) {
	now := s.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(adminID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType:   TokenTypeAdmin,
		UserID:      adminID,
		RoleID:      roleID,
		Permissions: permissions,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Logout revokes a token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	if s.rdb == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if left := claims.ExpiresAt.Sub(s.now()); left > 0 {
			ttl = left
		}
	}
	return s.rdb.Set(ctx, config.CacheKey.AdminRevokedKey(claims.ID), 1, ttl).Err()
}

// CheckActive returns ErrTokenRevoked for a signed-out token. A Redis
// failure is returned as is so callers can decide to fail open.
func (s *AuthService) CheckActive(ctx context.Context, claims *Claims) error {
	if s.rdb == nil || claims.ID == "" {
		return nil
	}
	n, err := s.rdb.Exists(ctx, config.CacheKey.AdminRevokedKey(claims.ID)).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrTokenRevoked
	}
	return nil
}

// Me returns the admin behind a token.
func (s *AuthService) Me(ctx context.Context, adminID int) (*model.Admin, error) {
	return s.admins.GetByID(ctx, adminID)
}
