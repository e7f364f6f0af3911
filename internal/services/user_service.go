package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/markdave123-py/CodeInsight/internal/core"
	"github.com/markdave123-py/CodeInsight/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSignup      = errors.New("email and a password of at least 8 characters are required")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims carried by session tokens.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// LoginResult is handed back to the client after a successful login.
type LoginResult struct {
	Token    string       `json:"token"`
	Redirect string       `json:"redirect"`
	User     *models.User `json:"user"`
}

// SessionState mirrors what the UI renders from: a user once known, or nothing.
type SessionState struct {
	IsAuthenticated bool         `json:"isAuthenticated"`
	IsLoading       bool         `json:"isLoading"`
	User            *models.User `json:"user"`
}

type UserService struct {
	db        core.DbClient
	secret    []byte
	issuer    string
	ttl       time.Duration
	now       func() time.Time
	bcryptCst int
}

func NewUserService(db core.DbClient, jwtSecret, projectID string, ttl time.Duration) *UserService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &UserService{
		db:        db,
		secret:    []byte(jwtSecret),
		issuer:    projectID,
		ttl:       ttl,
		now:       time.Now,
		bcryptCst: bcrypt.DefaultCost,
	}
}

func (s *UserService) Signup(ctx context.Context, email, password, displayName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || len(password) < 8 {
		return nil, ErrInvalidSignup
	}
	if existing, err := s.db.GetUserByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	} else if err != nil && !errors.Is(err, core.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCst)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		ID:           uuid.NewString(),
		DisplayName:  strings.TrimSpace(displayName),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
		UpdatedAt:    s.now().UTC(),
	}
	if err := s.db.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login checks the password and issues a token. redirect is echoed back so
// the client lands where login was started.
func (s *UserService) Login(ctx context.Context, email, password, redirect string) (*LoginResult, error) {
	user, err := s.db.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, core.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, err
	}
	if redirect == "" {
		redirect = "/"
	}
	return &LoginResult{Token: token, Redirect: redirect, User: user}, nil
}

func (s *UserService) issueToken(userID string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates signature, expiry and issuer.
func (s *UserService) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tok.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Logout revokes the token until its own expiry.
func (s *UserService) Logout(ctx context.Context, tokenStr string) error {
	claims, err := s.ParseToken(tokenStr)
	if err != nil {
		return err
	}
	exp := s.now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return s.db.RevokeToken(ctx, claims.ID, exp)
}

func (s *UserService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return s.db.IsTokenRevoked(ctx, tokenID)
}

// Session resolves the current user. Unknown users yield an unauthenticated state.
func (s *UserService) Session(ctx context.Context, userID string) (SessionState, error) {
	if userID == "" {
		return SessionState{}, nil
	}
	user, err := s.db.GetUserByID(ctx, userID)
	if errors.Is(err, core.ErrUserNotFound) {
		return SessionState{}, nil
	}
	if err != nil {
		return SessionState{}, err
	}
	return SessionState{IsAuthenticated: true, User: user}, nil
}
