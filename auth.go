package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"xlsviz/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailRequired       = errors.New("email required")
	ErrPasswordTooShort    = errors.New("password too short (min 6)")
	ErrUserExists          = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrUserNotFound        = errors.New("user not found")
)

// RegisterUser creates an account with the given role name.
func RegisterUser(db *gorm.DB, email, name, password, roleName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(password) < 6 { // basic password policy
		return nil, ErrPasswordTooShort
	}
	if strings.TrimSpace(name) == "" {
		name = email
	}
	// pre-check existing (optimistic)
	var existing models.User
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	var role models.Role
	if err := db.Where("name = ?", roleName).First(&role).Error; err != nil {
		return nil, fmt.Errorf("role %q: %w", roleName, err)
	}
	user := models.User{Email: email, Name: strings.TrimSpace(name), PasswordHash: hashedPassword, RoleID: &role.ID, Role: role}
	if err := db.Omit("Role").Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) { // race condition after initial check
			return nil, ErrUserExists
		}
		return nil, err
	}
	return &user, nil
}

// Authenticate checks the password and returns the user with its role loaded.
func Authenticate(db *gorm.DB, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	if err := db.Preload("Role").Where("email = ?", email).First(&user).Error; err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// findUser loads an account with its role; ErrUserNotFound when it is gone.
func findUser(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.Preload("Role").Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "UNIQUE constraint") || strings.Contains(s, "unique constraint")
}

// createRefreshToken generates a random refresh token, stores its hash with expiry and returns the raw token string
func createRefreshToken(db *gorm.DB, userID string, ttl time.Duration) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	rt := models.RefreshToken{UserID: userID, TokenHash: hashToken(token), ExpiresAt: time.Now().Add(ttl)}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// rotateRefreshToken revokes raw and returns its owner with a fresh token.
func rotateRefreshToken(db *gorm.DB, raw string, ttl time.Duration) (*models.User, string, error) {
	var rt models.RefreshToken
	if err := db.Where("token_hash = ?", hashToken(raw)).First(&rt).Error; err != nil {
		return nil, "", ErrInvalidRefreshToken
	}
	if rt.Revoked || time.Now().After(rt.ExpiresAt) {
		return nil, "", ErrInvalidRefreshToken
	}
	user, err := findUser(db, rt.UserID)
	if err != nil {
		return nil, "", ErrInvalidRefreshToken
	}
	if err := db.Model(&rt).Update("revoked", true).Error; err != nil {
		return nil, "", err
	}
	next, err := createRefreshToken(db, user.ID, ttl)
	if err != nil {
		return nil, "", err
	}
	return user, next, nil
}

// revokeRefreshToken marks raw as revoked (useful on logout).
func revokeRefreshToken(db *gorm.DB, raw string) error {
	res := db.Model(&models.RefreshToken{}).Where("token_hash = ?", hashToken(raw)).Update("revoked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidRefreshToken
	}
	return nil
}
