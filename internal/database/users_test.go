package database

import (
	"context"
	"testing"

	"habittracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserCRUD(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	user := createTestUser(t, db, "user@example.com", "TestUser")
	assert.NotZero(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	found, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", found.Email)
	assert.True(t, found.IsActive)
	assert.False(t, found.IsStaff)
	assert.Nil(t, found.TgChatID)

	found, err = db.GetUserByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	// Поиск по нику без учета регистра и "@"
	found, err = db.GetUserByTgUsername(ctx, "@testuser")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	name := "Test"
	found.Name = &name
	require.NoError(t, db.UpdateUserProfile(ctx, found))

	found, err = db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Name)
	assert.Equal(t, "Test", *found.Name)

	users, err := db.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUser_Duplicates(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	createTestUser(t, db, "dup@example.com", "first")

	err := db.CreateUser(context.Background(), &models.User{Email: "dup@example.com", PasswordHash: "x", TgUsername: "second"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	err = db.CreateUser(context.Background(), &models.User{Email: "other@example.com", PasswordHash: "x", TgUsername: "first"})
	assert.ErrorIs(t, err, ErrDuplicateTgUsername)
}

func TestUser_TelegramLink(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	user := createTestUser(t, db, "tg@example.com", "tguser")

	require.NoError(t, db.UpdateTgChatID(ctx, user.ID, 777, "en-US"))

	found, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found.TgChatID)
	assert.Equal(t, int64(777), *found.TgChatID)
	assert.Equal(t, "en", found.Locale())

	// Пустой код языка не затирает сохраненный
	require.NoError(t, db.UpdateTgChatID(ctx, user.ID, 778, ""))
	found, err = db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(778), *found.TgChatID)
	require.NotNil(t, found.LanguageCode)
	assert.Equal(t, "en-US", *found.LanguageCode)
}

func TestUser_StaffFlag(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	user := createTestUser(t, db, "boss@example.com", "boss")

	require.NoError(t, db.SetUserStaff(ctx, user.ID, true))
	found, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, found.IsStaff)
}

func TestUser_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	_, err := db.GetUserByID(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, db.UpdateTgChatID(ctx, 42, 1, ""), ErrNotFound)
	assert.ErrorIs(t, db.SetUserStaff(ctx, 42, true), ErrNotFound)
}
