package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"habittracker/internal/access"
	"habittracker/internal/auth"
	"habittracker/internal/config"
	"habittracker/internal/database"
	"habittracker/internal/domain"
	"habittracker/internal/events"
	"habittracker/internal/models"

	"github.com/rs/zerolog"
)

// RegisterInput is the registration payload.
type RegisterInput struct {
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	TgUsername string  `json:"tg_username"`
	Name       *string `json:"name"`
	Phone      *string `json:"phone"`
	City       *string `json:"city"`
}

// Token is an issued access token.
type Token struct {
	Access    string    `json:"access"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UserService struct {
	repo     domain.UserRepository
	tokens   *auth.Issuer
	config   *config.Config
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewUserService(
	repo domain.UserRepository,
	tokens *auth.Issuer,
	config *config.Config,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *UserService {
	return &UserService{
		repo:     repo,
		tokens:   tokens,
		config:   config,
		eventBus: eventBus,
		logger:   logger,
	}
}

func (s *UserService) Register(ctx context.Context, in *RegisterInput) (*models.User, error) {
	verr := NewValidationError()

	email := models.NormalizeEmail(in.Email)
	switch {
	case email == "":
		verr.Add("email", "This field is required.")
	default:
		if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
			verr.Add("email", "Enter a valid email address.")
		}
	}

	switch {
	case in.Password == "":
		verr.Add("password", "This field is required.")
	case len([]rune(in.Password)) < models.MinPasswordLength:
		verr.Add("password", "Ensure this field has at least 8 characters.")
	}

	username := models.NormalizeTgUsername(in.TgUsername)
	switch {
	case username == "":
		verr.Add("tg_username", "This field is required.")
	case strings.ContainsAny(username, " \t\n"):
		verr.Add("tg_username", "Telegram username may not contain spaces.")
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		TgUsername:   username,
		Name:         in.Name,
		Phone:        in.Phone,
		City:         in.City,
		IsStaff:      s.config.IsStaffEmail(email),
		IsActive:     true,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, database.ErrDuplicateEmail):
			return nil, NewFieldError("email", "A user with this email already exists.")
		case errors.Is(err, database.ErrDuplicateTgUsername):
			return nil, NewFieldError("tg_username", "A user with this Telegram username already exists.")
		}
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Bool("is_staff", user.IsStaff).Msg("user registered")
	return user, nil
}

// Login checks credentials and issues an access token.
func (s *UserService) Login(ctx context.Context, email, password string) (*Token, error) {
	user, err := s.repo.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	signed, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Token{Access: signed, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a bearer token to an identity. The staff flag comes from the stored row.
func (s *UserService) Authenticate(ctx context.Context, token string) (access.Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return access.Identity{}, ErrUnauthenticated
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return access.Identity{}, ErrUnauthenticated
		}
		return access.Identity{}, err
	}
	if !user.IsActive {
		return access.Identity{}, ErrUnauthenticated
	}

	return access.Identity{UserID: user.ID, IsStaff: user.IsStaff}, nil
}

func (s *UserService) Me(ctx context.Context, id access.Identity) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id.UserID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id access.Identity, in *models.ProfileUpdate) (*models.User, error) {
	user, err := s.Me(ctx, id)
	if err != nil {
		return nil, err
	}

	in.ApplyTo(user)
	if err := s.repo.UpdateUserProfile(ctx, user); err != nil {
		return nil, mapStoreError(err)
	}
	return user, nil
}

// LinkTelegram binds chatID to the account registered with username.
func (s *UserService) LinkTelegram(ctx context.Context, username string, chatID int64, languageCode string) (*models.User, error) {
	username = models.NormalizeTgUsername(username)
	if username == "" {
		return nil, ErrNotFound
	}

	user, err := s.repo.GetUserByTgUsername(ctx, username)
	if err != nil {
		return nil, mapStoreError(err)
	}

	if err := s.repo.UpdateTgChatID(ctx, user.ID, chatID, languageCode); err != nil {
		return nil, mapStoreError(err)
	}
	user.TgChatID = &chatID
	if languageCode != "" {
		user.LanguageCode = &languageCode
	}

	s.logger.Info().Int64("user_id", user.ID).Int64("chat_id", chatID).Msg("telegram chat linked")

	if s.eventBus != nil {
		payload := events.UserLinkedPayload{UserID: user.ID, ChatID: chatID}
		if err := s.eventBus.PublishJSON(events.EventUserTelegramLinked, payload); err != nil {
			s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("publish event error")
		}
	}
	return user, nil
}
