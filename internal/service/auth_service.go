package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dom/medtrack/internal/config"
	"github.com/dom/medtrack/internal/domain"
	"github.com/dom/medtrack/internal/identity"
	"github.com/dom/medtrack/internal/metrics"
	"github.com/dom/medtrack/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrEmailExists         = errors.New("email already exists")
)

type AuthService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	cfg         *config.Config
	log         zerolog.Logger
	now         Clock
}

func NewAuthService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository, cfg *config.Config, log zerolog.Logger) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		cfg:         cfg,
		log:         log.With().Str("component", "auth").Logger(),
		now:         time.Now,
	}
}

// WithClock replaces the service clock
func (s *AuthService) WithClock(now Clock) *AuthService {
	s.now = now
	return s
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordAuthAttempt("login", false)
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr("login", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		metrics.RecordAuthAttempt("login", false)
		return nil, ErrInvalidCredentials
	}

	metrics.RecordAuthAttempt("login", true)
	return s.generateTokens(ctx, user)
}

// Refresh exchanges a refresh token for a new token pair. The presented
// session is deleted before new tokens are issued; whoever deletes it first
// wins, so each refresh token works once even under concurrent use.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	sessionID, secret, ok := splitRefreshToken(refreshToken)
	if !ok {
		metrics.RecordAuthAttempt("refresh", false)
		return nil, ErrInvalidRefreshToken
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordAuthAttempt("refresh", false)
			return nil, ErrInvalidRefreshToken
		}
		return nil, storeErr("refresh", err)
	}

	if s.now().After(session.ExpiresAt) {
		if err := s.sessionRepo.Delete(ctx, session.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("failed to delete expired session")
		}
		metrics.RecordAuthAttempt("refresh", false)
		return nil, ErrInvalidRefreshToken
	}

	if err := bcrypt.CompareHashAndPassword([]byte(session.RefreshTokenHash), []byte(secret)); err != nil {
		metrics.RecordAuthAttempt("refresh", false)
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if err := s.sessionRepo.DeleteByUserID(ctx, session.UserID); err != nil {
				s.log.Warn().Err(err).Str("user_id", session.UserID.String()).Msg("failed to delete sessions of missing user")
			}
			metrics.RecordAuthAttempt("refresh", false)
			return nil, ErrInvalidRefreshToken
		}
		return nil, storeErr("refresh", err)
	}

	if err := s.sessionRepo.Delete(ctx, session.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordAuthAttempt("refresh", false)
			return nil, ErrInvalidRefreshToken
		}
		return nil, storeErr("refresh", err)
	}

	metrics.RecordAuthAttempt("refresh", true)
	return s.generateTokens(ctx, user)
}

func (s *AuthService) generateTokens(ctx context.Context, user *domain.User) (*AuthResult, error) {
	// Generate access token
	accessToken, expiresAt, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	// Generate refresh token
	sessionID := uuid.New()
	secret := uuid.New().String()
	hashedRefresh, err := hashPassword(secret, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	// One live session per user
	if err := s.sessionRepo.DeleteByUserID(ctx, user.ID); err != nil {
		return nil, storeErr("replace sessions", err)
	}

	// Store session
	session := &domain.UserSession{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: hashedRefresh,
		ExpiresAt:        s.now().Add(s.cfg.RefreshTokenTTL),
		CreatedAt:        s.now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, storeErr("create session", err)
	}

	return &AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: sessionID.String() + "." + secret,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *AuthService) generateAccessToken(user *domain.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(time.Duration(s.cfg.JWTExpirationHours) * time.Hour)
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	return signed, exp, err
}

// ValidateToken verifies an access token and returns the session it
// carries. The role is deliberately not taken from the token; the
// resolver reads it from the user store.
func (s *AuthService) ValidateToken(tokenString string) (identity.Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return identity.Session{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return identity.Session{}, errors.New("invalid token")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return identity.Session{}, errors.New("missing 'sub' claim")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return identity.Session{}, fmt.Errorf("invalid 'sub' claim: %w", err)
	}
	email, _ := claims["email"].(string)

	return identity.Session{UserID: userID, Email: email}, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return user, nil
}

func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return storeErr("logout", err)
	}
	return nil
}

// EnsureBootstrapAdmin creates an admin account with the given credentials
// unless a user with that email already exists. Registration is otherwise
// admin-only, so this is how the first admin comes to be.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return false, nil
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, storeErr("bootstrap admin", err)
	}

	hash, err := hashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return false, err
	}
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    s.now(),
		UpdatedAt:    s.now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return false, nil
		}
		return false, storeErr("bootstrap admin", err)
	}
	return true, nil
}

func splitRefreshToken(token string) (uuid.UUID, string, bool) {
	idPart, secret, found := strings.Cut(token, ".")
	if !found || secret == "" {
		return uuid.Nil, "", false
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, "", false
	}
	return id, secret, true
}

func hashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
