// Package user provides account management, credential checks and the
// authorization predicates used by every entry point.
package user

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// hashCost is the bcrypt work factor. Tests lower it.
var hashCost = bcrypt.DefaultCost

// CreateOpts holds parameters for creating a user.
type CreateOpts struct {
	Username  string
	Email     string
	Password  string
	Role      models.Role
	FirstName string
	LastName  string
}

// ListFilters holds optional filters for listing users.
type ListFilters struct {
	Role models.Role
	// ExcludeAdmins drops administrators, who cannot be task resources.
	ExcludeAdmins bool
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", perrors.Validation("user: password must be at least %d characters", MinPasswordLength)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("user: hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword reports whether password matches u's stored hash.
func CheckPassword(u *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Create validates opts and inserts a new user. New accounts must change
// their password on first login.
func Create(db *gorm.DB, opts CreateOpts) (*models.User, error) {
	opts.Username = strings.TrimSpace(opts.Username)
	opts.Email = strings.TrimSpace(opts.Email)
	if opts.Username == "" || len(opts.Username) > 64 {
		return nil, perrors.Validation("user: username must be 1 to 64 characters")
	}
	if _, err := mail.ParseAddress(opts.Email); err != nil || len(opts.Email) > 120 {
		return nil, perrors.Validation("user: invalid email %q", opts.Email)
	}
	if opts.Role == "" {
		opts.Role = models.RoleTeamMember
	}
	if !opts.Role.Valid() {
		return nil, perrors.Validation("user: unknown role %q", opts.Role)
	}
	hash, err := HashPassword(opts.Password)
	if err != nil {
		return nil, err
	}

	u := models.User{
		Username:     opts.Username,
		Email:        opts.Email,
		PasswordHash: hash,
		Role:         opts.Role,
		FirstName:    opts.FirstName,
		LastName:     opts.LastName,
		IsFirstLogin: true,
	}
	if err := db.Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, perrors.Wrap(perrors.ErrUniquenessConflict, err, "user: username or email already registered")
		}
		return nil, perrors.Persistence(err, "user: create %s", opts.Username)
	}
	return &u, nil
}

// Get retrieves a user by ID.
func Get(db *gorm.DB, id uint) (*models.User, error) {
	var u models.User
	if err := db.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, perrors.NotFound("user: not found: %d", id)
		}
		return nil, perrors.Persistence(err, "user: get %d", id)
	}
	return &u, nil
}

// GetByUsername retrieves a user by username.
func GetByUsername(db *gorm.DB, username string) (*models.User, error) {
	var u models.User
	if err := db.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, perrors.NotFound("user: not found: %s", username)
		}
		return nil, perrors.Persistence(err, "user: get %s", username)
	}
	return &u, nil
}

// List returns users matching filters ordered by username.
func List(db *gorm.DB, filters ListFilters) ([]models.User, error) {
	q := db.Model(&models.User{})
	if filters.Role != "" {
		q = q.Where("role = ?", filters.Role)
	}
	if filters.ExcludeAdmins {
		q = q.Where("role <> ?", models.RoleAdmin)
	}
	var users []models.User
	if err := q.Order("username ASC").Find(&users).Error; err != nil {
		return nil, perrors.Persistence(err, "user: list")
	}
	return users, nil
}

// Names maps user IDs to full names.
func Names(db *gorm.DB, ids []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, perrors.Persistence(err, "user: names")
	}
	for _, u := range users {
		out[u.ID] = u.FullName()
	}
	return out, nil
}

// Authenticate looks a user up by username or email and checks password.
// Any mismatch is reported as Unauthorized without saying which part failed.
func Authenticate(db *gorm.DB, login, password string) (*models.User, error) {
	var u models.User
	err := db.Where("username = ? OR email = ?", login, login).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, perrors.New(perrors.ErrUnauthorized, "user: invalid credentials")
		}
		return nil, perrors.Persistence(err, "user: authenticate")
	}
	if !CheckPassword(&u, password) {
		return nil, perrors.New(perrors.ErrUnauthorized, "user: invalid credentials")
	}
	return &u, nil
}

// ChangePassword replaces the password of userID after verifying current
// and clears the first-login flag.
func ChangePassword(db *gorm.DB, userID uint, current, next string) error {
	u, err := Get(db, userID)
	if err != nil {
		return err
	}
	if !CheckPassword(u, current) {
		return perrors.New(perrors.ErrUnauthorized, "user: current password is incorrect")
	}
	return setPassword(db, u.ID, next)
}

func setPassword(db *gorm.DB, userID uint, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	err = db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"password_hash":  hash,
		"is_first_login": false,
	}).Error
	if err != nil {
		return perrors.Persistence(err, "user: set password %d", userID)
	}
	return nil
}
