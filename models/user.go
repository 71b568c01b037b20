package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserRole represents the role of a user account
type UserRole string

const (
	RoleAdmin UserRole = "ADMIN"
	RoleUser  UserRole = "USER"
)

// ApprovalStatus represents the admin-gated approval state of an account
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// User represents a platform account. New registrations start PENDING
// and may only log in once an admin approves them.
type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Username       string         `gorm:"uniqueIndex;not null" json:"username"`
	Email          string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash   string         `gorm:"not null" json:"-"`
	Role           UserRole       `gorm:"type:varchar(10);default:'USER'" json:"role"`
	ApprovalStatus ApprovalStatus `gorm:"type:varchar(10);default:'PENDING'" json:"approval_status"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	IsActive       bool           `gorm:"default:true" json:"is_active"`
	LastLoginAt    *time.Time     `json:"last_login_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// SetPassword hashes and sets the password for the user
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies the provided password against the stored hash
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// CanLogin reports whether the account may authenticate at all.
// Only active, approved accounts can obtain tokens.
func (u *User) CanLogin() bool {
	return u.IsActive && u.ApprovalStatus == ApprovalApproved
}

// MigrateUserModels runs database migrations for user-related models
func MigrateUserModels(db *gorm.DB) error {
	return db.AutoMigrate(&User{})
}

// SeedDefaultAdminUser creates the predefined admin account if it does
// not exist. Called at startup; safe to run repeatedly.
func SeedDefaultAdminUser(db *gorm.DB, username, email, password string) error {
	if password == "" {
		// No seed password configured, nothing to do.
		return nil
	}

	var count int64
	if err := db.Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	admin := &User{
		Username:       username,
		Email:          email,
		Role:           RoleAdmin,
		ApprovalStatus: ApprovalApproved,
		IsActive:       true,
	}
	if err := admin.SetPassword(password); err != nil {
		return err
	}

	return db.Create(admin).Error
}
