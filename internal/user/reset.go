package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
)

// ResetTokenTTL is how long a password reset token stays redeemable.
const ResetTokenTTL = time.Hour

// newResetToken returns 32 random hex characters.
func newResetToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// RequestReset issues a reset token for the account registered under
// email. Delivering the token is the caller's concern.
func RequestReset(db *gorm.DB, email string, now time.Time) (*models.PasswordResetToken, error) {
	var u models.User
	if err := db.Where("email = ?", strings.TrimSpace(email)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, perrors.NotFound("user: no account for %s", email)
		}
		return nil, perrors.Persistence(err, "user: request reset")
	}
	tok := models.PasswordResetToken{
		UserID:    u.ID,
		Token:     newResetToken(),
		ExpiresAt: now.Add(ResetTokenTTL),
	}
	if err := db.Create(&tok).Error; err != nil {
		return nil, perrors.Persistence(err, "user: store reset token")
	}
	return &tok, nil
}

// ResetPassword redeems token and sets a new password. The token is
// consumed in the same transaction.
func ResetPassword(db *gorm.DB, token, password string, now time.Time) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var tok models.PasswordResetToken
		if err := tx.Where("token = ?", token).First(&tok).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return perrors.Validation("user: reset link is invalid or has expired")
			}
			return perrors.Persistence(err, "user: load reset token")
		}
		if !tok.Valid(now) {
			return perrors.Validation("user: reset link is invalid or has expired")
		}
		if err := setPassword(tx, tok.UserID, password); err != nil {
			return err
		}
		if err := tx.Model(&tok).Update("used", true).Error; err != nil {
			return perrors.Persistence(err, "user: consume reset token")
		}
		return nil
	})
}
