package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/talentgate/exam-backend/internal/config"
	"github.com/talentgate/exam-backend/internal/database"
	"github.com/talentgate/exam-backend/internal/logger"
	"github.com/talentgate/exam-backend/internal/model"
	"github.com/talentgate/exam-backend/internal/repository"
	"github.com/talentgate/exam-backend/internal/service"
	"golang.org/x/term"
)

// superAdminRole is granted every permission in the menu catalog.
const superAdminRole = "Super Admin"

func main() {
	var roleName string
	var syncOnly bool
	flag.StringVar(&roleName, "role", superAdminRole, "Role name for the new admin (created if missing)")
	flag.BoolVar(&syncOnly, "sync-only", false, "Only sync permissions and the super admin role, then exit")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	adminRepo := repository.NewAdminRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	authService := service.NewAuthService(cfg, adminRepo, roleRepo, nil)

	// ─── Sync Permissions ──────────────────────────────────────────────
	all := model.AllPermissions()
	if err := roleRepo.SyncPermissions(ctx, all); err != nil {
		log.Fatal().Err(err).Msg("Failed to sync permissions")
	}
	superID, err := ensureRole(ctx, roleRepo, superAdminRole)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure super admin role")
	}
	if err := roleRepo.AssignPermissionsToRole(ctx, superID, all); err != nil {
		log.Fatal().Err(err).Msg("Failed to grant super admin permissions")
	}
	log.Info().Int("permissions", len(all)).Int("role_id", superID).Msg("Permissions synced")

	if syncOnly {
		return
	}

	roleID, err := ensureRole(ctx, roleRepo, roleName)
	if err != nil {
		log.Fatal().Err(err).Str("role", roleName).Msg("Failed to ensure role")
	}

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Admin User ===")

	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		os.Exit(1)
	}

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		fmt.Println("Error: a valid email is required")
		os.Exit(1)
	}
	if _, err := adminRepo.GetByEmail(ctx, email); err == nil {
		fmt.Printf("Error: admin %s already exists\n", email)
		os.Exit(1)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		log.Fatal().Err(err).Msg("Failed to look up admin")
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		os.Exit(1)
	}
	password := string(bytePassword)
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		os.Exit(1)
	}

	// ─── Create Admin ──────────────────────────────────────────────────
	hash, err := authService.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	admin := &model.Admin{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		RoleID:       roleID,
	}
	if err := adminRepo.Create(ctx, admin); err != nil {
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	fmt.Printf("\nSuccess! Admin '%s' (%s) created with ID %d and role %q\n", admin.Name, admin.Email, admin.ID, roleName)
}

// ensureRole returns the id of the named role, creating it when missing.
func ensureRole(ctx context.Context, roles *repository.RoleRepository, name string) (int, error) {
	role, err := roles.GetByName(ctx, name)
	if err == nil {
		return role.ID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	return roles.CreateRole(ctx, name)
}
