package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"habittracker/internal/models"
)

const userColumns = `id, email, password_hash, tg_username, tg_chat_id, language_code,
	name, phone, city, avatar, is_staff, is_active, created_at, updated_at`

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	query := db.Rebind(`INSERT INTO users (
				email, password_hash, tg_username, tg_chat_id, language_code,
				name, phone, city, avatar, is_staff, is_active, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	now := time.Now().UTC()
	err := db.QueryRowxContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.TgUsername,
		user.TgChatID,
		user.LanguageCode,
		user.Name,
		user.Phone,
		user.City,
		user.Avatar,
		user.IsStaff,
		user.IsActive,
		now,
		now,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapUserConflict(err))
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetUserByTgUsername matches case-insensitively, ignoring a leading "@".
func (db *DB) GetUserByTgUsername(ctx context.Context, username string) (*models.User, error) {
	return db.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(tg_username) = LOWER(?)`,
		models.NormalizeTgUsername(username))
}

func (db *DB) queryUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	if err := db.GetContext(ctx, &user, db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// UpdateUserProfile stores the editable profile columns.
func (db *DB) UpdateUserProfile(ctx context.Context, user *models.User) error {
	query := db.Rebind(`UPDATE users SET name = ?, phone = ?, city = ?, avatar = ?, updated_at = ? WHERE id = ?`)
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, query, user.Name, user.Phone, user.City, user.Avatar, now, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return err
	}
	user.UpdatedAt = now
	return nil
}

// UpdateTgChatID links a Telegram chat to the user.
func (db *DB) UpdateTgChatID(ctx context.Context, userID, chatID int64, languageCode string) error {
	var lang *string
	if languageCode != "" {
		lang = &languageCode
	}
	query := db.Rebind(`UPDATE users SET tg_chat_id = ?, language_code = COALESCE(?, language_code), updated_at = ? WHERE id = ?`)
	res, err := db.ExecContext(ctx, query, chatID, lang, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update tg chat id: %w", err)
	}
	return expectAffected(res)
}

func (db *DB) SetUserStaff(ctx context.Context, userID int64, isStaff bool) error {
	query := db.Rebind(`UPDATE users SET is_staff = ?, updated_at = ? WHERE id = ?`)
	res, err := db.ExecContext(ctx, query, isStaff, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update staff flag: %w", err)
	}
	return expectAffected(res)
}

func (db *DB) GetAllUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
