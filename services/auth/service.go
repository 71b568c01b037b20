// Package auth implements registration, login, the admin approval
// workflow, and profile management.
package auth

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"quantpulse/apperrors"
	"quantpulse/models"
)

// Service handles user account business logic
type Service struct {
	db *gorm.DB
}

// NewService creates a new auth service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Register creates a new account in PENDING approval status
func (s *Service) Register(username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" || email == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "username, email and password are required")
	}

	var count int64
	if err := s.db.Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateUser
	}

	user := &models.User{
		Username:       username,
		Email:          email,
		Role:           models.RoleUser,
		ApprovalStatus: models.ApprovalPending,
		IsActive:       true,
	}
	if err := user.SetPassword(password); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.db.Create(user).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

// Login authenticates by username or email and returns the user when
// the password verifies and the account is active and approved.
func (s *Service) Login(usernameOrEmail, password string) (*models.User, error) {
	var user models.User
	err := s.db.Where("username = ? OR email = ?", usernameOrEmail, strings.ToLower(usernameOrEmail)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if !user.CheckPassword(password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, apperrors.ErrAccountInactive
	}
	if user.ApprovalStatus != models.ApprovalApproved {
		return nil, apperrors.ErrAccountNotApproved
	}

	now := time.Now().UTC()
	if err := s.db.Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	user.LastLoginAt = &now

	return &user, nil
}

// GetUser returns a user by ID
func (s *Service) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// ListUsers returns all users
func (s *Service) ListUsers() ([]models.User, error) {
	var users []models.User
	if err := s.db.Order("id").Find(&users).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return users, nil
}

// ListPendingUsers returns users awaiting approval
func (s *Service) ListPendingUsers() ([]models.User, error) {
	var users []models.User
	if err := s.db.Where("approval_status = ?", models.ApprovalPending).
		Order("id").Find(&users).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return users, nil
}

// Approve transitions a user to APPROVED
func (s *Service) Approve(id uint) (*models.User, error) {
	return s.setApproval(id, models.ApprovalApproved)
}

// Reject transitions a user to REJECTED
func (s *Service) Reject(id uint) (*models.User, error) {
	return s.setApproval(id, models.ApprovalRejected)
}

func (s *Service) setApproval(id uint, status models.ApprovalStatus) (*models.User, error) {
	user, err := s.GetUser(id)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(user).Update("approval_status", status).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	user.ApprovalStatus = status
	return user, nil
}

// Deactivate soft-deletes a user: the active flag is cleared and the
// record retained. Admins cannot deactivate themselves.
func (s *Service) Deactivate(id, actingAdminID uint) error {
	if id == actingAdminID {
		return apperrors.ErrSelfDelete
	}

	user, err := s.GetUser(id)
	if err != nil {
		return err
	}

	if err := s.db.Model(user).Update("is_active", false).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// UpdateProfile updates the optional profile fields. Nil means leave
// the field unchanged.
func (s *Service) UpdateProfile(id uint, firstName, lastName *string) (*models.User, error) {
	user, err := s.GetUser(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if firstName != nil {
		updates["first_name"] = *firstName
	}
	if lastName != nil {
		updates["last_name"] = *lastName
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetUser(id)
}
