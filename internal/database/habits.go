package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"habittracker/internal/models"

	"github.com/jmoiron/sqlx"
)

const habitColumns = `id, user_id, place, time, action, is_pleasant_habit, pleasant_habit_id,
	periodicity, reward, estimated_duration, linked_to, is_published, created_at, updated_at`

// CreateHabit inserts a habit. Referenced habits are checked in the same transaction.
func (db *DB) CreateHabit(ctx context.Context, habit *models.Habit) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := db.checkReferences(ctx, tx, habit); err != nil {
		return err
	}

	query := tx.Rebind(`INSERT INTO habits (
				user_id, place, time, action, is_pleasant_habit, pleasant_habit_id,
				periodicity, reward, estimated_duration, linked_to, is_published,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	now := time.Now().UTC()
	err = tx.QueryRowxContext(ctx, query,
		habit.UserID,
		habit.Place,
		habit.Time,
		habit.Action,
		habit.IsPleasantHabit,
		habit.PleasantHabitID,
		habit.Periodicity,
		habit.Reward,
		habit.EstimatedDuration,
		habit.LinkedTo,
		habit.IsPublished,
		now,
		now,
	).Scan(&habit.ID)
	if err != nil {
		return fmt.Errorf("failed to create habit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	habit.CreatedAt = now
	habit.UpdatedAt = now
	return nil
}

// UpdateHabit stores all mutable columns of an existing habit.
func (db *DB) UpdateHabit(ctx context.Context, habit *models.Habit) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := db.checkReferences(ctx, tx, habit); err != nil {
		return err
	}

	// Привычка, на которую ссылаются как на приятную, не может перестать быть приятной
	if !habit.IsPleasantHabit {
		var refs int
		err := tx.GetContext(ctx, &refs,
			tx.Rebind(`SELECT COUNT(*) FROM habits WHERE pleasant_habit_id = ? AND id <> ?`), habit.ID, habit.ID)
		if err != nil {
			return fmt.Errorf("failed to count pleasant references: %w", err)
		}
		if refs > 0 {
			return ErrPleasantHabitInUse
		}
	}

	query := tx.Rebind(`UPDATE habits SET
				place = ?, time = ?, action = ?, is_pleasant_habit = ?, pleasant_habit_id = ?,
				periodicity = ?, reward = ?, estimated_duration = ?, linked_to = ?,
				is_published = ?, updated_at = ?
			WHERE id = ?`)
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, query,
		habit.Place,
		habit.Time,
		habit.Action,
		habit.IsPleasantHabit,
		habit.PleasantHabitID,
		habit.Periodicity,
		habit.Reward,
		habit.EstimatedDuration,
		habit.LinkedTo,
		habit.IsPublished,
		now,
		habit.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update habit: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	habit.UpdatedAt = now
	return nil
}

// checkReferences validates pleasant_habit and linked_to targets inside tx.
// On postgres the referenced row is share-locked until commit.
func (db *DB) checkReferences(ctx context.Context, tx *sqlx.Tx, habit *models.Habit) error {
	lock := ""
	if db.isPostgres() {
		lock = " FOR SHARE"
	}

	if habit.PleasantHabitID != nil {
		var isPleasant bool
		err := tx.GetContext(ctx, &isPleasant,
			tx.Rebind(`SELECT is_pleasant_habit FROM habits WHERE id = ?`+lock), *habit.PleasantHabitID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrPleasantHabitNotFound
		case err != nil:
			return fmt.Errorf("failed to load pleasant habit: %w", err)
		case !isPleasant:
			return ErrNotPleasantHabit
		}
	}

	if habit.LinkedTo != nil {
		var id int64
		err := tx.GetContext(ctx, &id, tx.Rebind(`SELECT id FROM habits WHERE id = ?`+lock), *habit.LinkedTo)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrLinkedHabitNotFound
		case err != nil:
			return fmt.Errorf("failed to load linked habit: %w", err)
		}
	}

	return nil
}

func (db *DB) GetHabit(ctx context.Context, id int64) (*models.Habit, error) {
	var habit models.Habit
	err := db.GetContext(ctx, &habit, db.Rebind(`SELECT `+habitColumns+` FROM habits WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get habit: %w", err)
	}
	return &habit, nil
}

func (db *DB) DeleteHabit(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM habits WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	return expectAffected(res)
}

// ListHabits returns one page of habits matching filter plus the total match count.
// limit < 0 returns every match.
func (db *DB) ListHabits(ctx context.Context, filter models.HabitFilter, limit, offset int) ([]models.Habit, int, error) {
	where, args := habitWhere(filter)

	var total int
	if err := db.GetContext(ctx, &total, db.Rebind(`SELECT COUNT(*) FROM habits`+where), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count habits: %w", err)
	}

	query := `SELECT ` + habitColumns + ` FROM habits` + where + ` ORDER BY id`
	if limit >= 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	habits := []models.Habit{}
	if total == 0 || (limit >= 0 && offset >= total) {
		return habits, total, nil
	}
	if err := db.SelectContext(ctx, &habits, db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list habits: %w", err)
	}
	return habits, total, nil
}

// ListRemindable returns published habits whose owners linked a Telegram chat.
// userID narrows the result to one owner when non-nil.
func (db *DB) ListRemindable(ctx context.Context, userID *int64) ([]models.Habit, error) {
	query := `SELECT ` + prefixColumns("h", habitColumns) + `
		FROM habits h JOIN users u ON u.id = h.user_id
		WHERE h.is_published = ? AND u.tg_chat_id IS NOT NULL`
	args := []interface{}{true}
	if userID != nil {
		query += ` AND h.user_id = ?`
		args = append(args, *userID)
	}
	query += ` ORDER BY h.id`

	habits := []models.Habit{}
	if err := db.SelectContext(ctx, &habits, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list remindable habits: %w", err)
	}
	return habits, nil
}

func habitWhere(filter models.HabitFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.OwnerID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *filter.OwnerID)
	}
	if filter.PleasantOnly {
		conds = append(conds, "is_pleasant_habit = ?")
		args = append(args, true)
	}
	if filter.PublishedOnly {
		conds = append(conds, "is_published = ?")
		args = append(args, true)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
