package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talentgate/exam-backend/internal/model"
)

// RoleRepository handles role and permission data access.
type RoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

// GetPermissionsByRoleID retrieves all permission codes for a given role.
func (r *RoleRepository) GetPermissionsByRoleID(ctx context.Context, roleID int) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.code
		 FROM permissions p
		 JOIN role_permissions rp ON p.id = rp.permission_id
		 WHERE rp.role_id = $1
		 ORDER BY p.code`, roleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var permissions []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		permissions = append(permissions, code)
	}
	return permissions, rows.Err()
}

// GetByName retrieves a role by its unique name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*model.Role, error) {
	role := &model.Role{Name: name}
	err := r.pool.QueryRow(ctx, "SELECT id, created_at FROM roles WHERE name = $1", name).Scan(&role.ID, &role.CreatedAt)
	if err != nil {
		return nil, err
	}
	return role, nil
}

// CreateRole inserts a new role and returns its ID.
func (r *RoleRepository) CreateRole(ctx context.Context, name string) (int, error) {
	var id int
	err := r.pool.QueryRow(ctx, "INSERT INTO roles (name) VALUES ($1) RETURNING id", name).Scan(&id)
	return id, err
}

// SyncPermissions makes sure every permission code exists.
func (r *RoleRepository) SyncPermissions(ctx context.Context, codes []model.Permission) error {
	batch := &pgx.Batch{}
	for _, code := range codes {
		batch.Queue("INSERT INTO permissions (code) VALUES ($1) ON CONFLICT (code) DO NOTHING", string(code))
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// AssignPermissionsToRole grants the permission codes to a role. Codes
// the role already holds are left alone.
func (r *RoleRepository) AssignPermissionsToRole(ctx context.Context, roleID int, codes []model.Permission) error {
	if len(codes) == 0 {
		return nil
	}

	raw := make([]string, len(codes))
	for i, c := range codes {
		raw[i] = string(c)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id)
		 SELECT $1, id FROM permissions WHERE code = ANY($2)
		 ON CONFLICT DO NOTHING`, roleID, raw)
	return err
}
