package service

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/nomadsim/esim_api/internal/models"
	"github.com/nomadsim/esim_api/internal/repository"
	"github.com/nomadsim/esim_api/internal/utils"
)

type AdminAuthService struct {
	adminRepo *repository.AdminUserRepository
}

func NewAdminAuthService(adminRepo *repository.AdminUserRepository) *AdminAuthService {
	return &AdminAuthService{adminRepo: adminRepo}
}

func (s *AdminAuthService) Login(email, password string) (string, *models.AdminUser, error) {
	log.Debug().Str("email", email).Msg("Login attempt")

	user, err := s.adminRepo.GetByEmail(email)
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Failed to get user by email")
		return "", nil, errors.New("invalid credentials")
	}

	if !user.IsActive {
		log.Warn().Str("email", email).Msg("Account is inactive")
		return "", nil, errors.New("account is inactive")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Warn().Str("email", email).Msg("Password verification failed")
		return "", nil, errors.New("invalid credentials")
	}

	token, err := utils.GenerateJWT(user.ID, user.Email, string(user.Role))
	if err != nil {
		return "", nil, err
	}

	if err := s.adminRepo.TouchLastLogin(user.ID, time.Now()); err != nil {
		log.Error().Err(err).Int("user_id", user.ID).Msg("Failed to record last login")
	}

	log.Info().Str("email", email).Str("role", string(user.Role)).Msg("Login successful")
	return token, user, nil
}

func (s *AdminAuthService) CreateAdmin(email, password, name string, role models.AdminRole) (*models.AdminUser, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.AdminUser{
		Email:        email,
		PasswordHash: string(hashedPassword),
		Name:         name,
		Role:         role,
		IsActive:     true,
	}

	if err := s.adminRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListAdmins returns all back-office users.
func (s *AdminAuthService) ListAdmins() ([]models.AdminUser, error) {
	return s.adminRepo.List()
}

// UpdateAdmin updates a team member's profile fields.
func (s *AdminAuthService) UpdateAdmin(user *models.AdminUser) error {
	return s.adminRepo.Update(user)
}

// ChangePassword replaces an admin's password.
func (s *AdminAuthService) ChangePassword(userID int, newPassword string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.adminRepo.UpdatePassword(userID, string(hashedPassword))
}

// GetAdmin returns one back-office user.
func (s *AdminAuthService) GetAdmin(userID int) (*models.AdminUser, error) {
	return s.adminRepo.GetByID(userID)
}
