package repository

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nomadsim/esim_api/internal/models"
)

type AdminUserRepository struct {
	db *sqlx.DB
}

func NewAdminUserRepository(db *sqlx.DB) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

func (r *AdminUserRepository) GetByEmail(email string) (*models.AdminUser, error) {
	var user models.AdminUser
	err := r.db.Get(&user, `
		SELECT id, email, password_hash, name, role, is_active, last_login_at, created_at, updated_at
		FROM admin_users
		WHERE email = $1
	`, email)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *AdminUserRepository) GetByID(id int) (*models.AdminUser, error) {
	var user models.AdminUser
	err := r.db.Get(&user, `
		SELECT id, email, password_hash, name, role, is_active, last_login_at, created_at, updated_at
		FROM admin_users
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *AdminUserRepository) List() ([]models.AdminUser, error) {
	var users []models.AdminUser
	err := r.db.Select(&users, `
		SELECT id, email, password_hash, name, role, is_active, last_login_at, created_at, updated_at
		FROM admin_users
		ORDER BY created_at
	`)
	return users, err
}

func (r *AdminUserRepository) Create(user *models.AdminUser) error {
	query := `
		INSERT INTO admin_users (email, password_hash, name, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(query, user.Email, user.PasswordHash, user.Name, user.Role, user.IsActive).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *AdminUserRepository) Update(user *models.AdminUser) error {
	query := `
		UPDATE admin_users
		SET name = $1, role = $2, is_active = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`
	return r.db.QueryRow(query, user.Name, user.Role, user.IsActive, user.ID).Scan(&user.UpdatedAt)
}

func (r *AdminUserRepository) UpdatePassword(id int, passwordHash string) error {
	_, err := r.db.Exec(`UPDATE admin_users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, passwordHash, id)
	return err
}

func (r *AdminUserRepository) TouchLastLogin(id int, at time.Time) error {
	_, err := r.db.Exec(`UPDATE admin_users SET last_login_at = $1 WHERE id = $2`, at, id)
	return err
}
