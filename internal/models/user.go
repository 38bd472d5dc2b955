package models

import "time"

// User is an account holder. Role drives every authorization decision.
type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:120;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	Role         Role      `gorm:"size:32;not null;default:team_member;index" json:"role"`
	FirstName    string    `gorm:"size:64" json:"first_name"`
	LastName     string    `gorm:"size:64" json:"last_name"`
	IsFirstLogin bool      `gorm:"not null" json:"is_first_login"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName returns "First Last", falling back to the username when either
// part is missing.
func (u User) FullName() string {
	if u.FirstName == "" || u.LastName == "" {
		return u.Username
	}
	return u.FirstName + " " + u.LastName
}

// PasswordResetToken is a single-use credential for resetting a password.
type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    uint      `gorm:"not null;index"`
	Token     string    `gorm:"size:100;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	Used      bool      `gorm:"not null"`
	CreatedAt time.Time
}

// Valid reports whether the token can still be redeemed at now.
func (t PasswordResetToken) Valid(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}
