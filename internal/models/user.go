package models

import (
	"strings"
	"time"
)

type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	TgUsername   string    `db:"tg_username" json:"tg_username"`
	TgChatID     *int64    `db:"tg_chat_id" json:"tg_chat_id"`       // заполняется после /start в боте
	LanguageCode *string   `db:"language_code" json:"language_code"` // код языка из Telegram
	Name         *string   `db:"name" json:"name"`
	Phone        *string   `db:"phone" json:"phone"`
	City         *string   `db:"city" json:"city"`
	Avatar       *string   `db:"avatar" json:"avatar"`
	IsStaff      bool      `db:"is_staff" json:"is_staff"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// HasChat reports whether the user linked a Telegram chat.
func (u *User) HasChat() bool {
	return u.TgChatID != nil && *u.TgChatID != 0
}

// Locale returns the message locale for the user.
func (u *User) Locale() string {
	if u.LanguageCode != nil && strings.HasPrefix(strings.ToLower(*u.LanguageCode), LocaleEN) {
		return LocaleEN
	}
	return LocaleRU
}

// NormalizeEmail lower-cases the domain part, leaving the local part untouched.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// ProfileUpdate carries editable profile fields.
type ProfileUpdate struct {
	Name   Optional[string] `json:"name"`
	Phone  Optional[string] `json:"phone"`
	City   Optional[string] `json:"city"`
	Avatar Optional[string] `json:"avatar"`
}

func (p *ProfileUpdate) ApplyTo(u *User) {
	if p.Name.Set {
		u.Name = p.Name.Ptr()
	}
	if p.Phone.Set {
		u.Phone = p.Phone.Ptr()
	}
	if p.City.Set {
		u.City = p.City.Ptr()
	}
	if p.Avatar.Set {
		u.Avatar = p.Avatar.Ptr()
	}
}

// NormalizeTgUsername strips surrounding spaces and a leading "@".
func NormalizeTgUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}
