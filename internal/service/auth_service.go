package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pid_tuner/internal/models"
	"pid_tuner/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is used when AuthConfig.TokenTTL is not set.
const DefaultTokenTTL = time.Hour

const tokenIssuer = "pid_tuner"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrEmptyUsername      = errors.New("username is empty")
	ErrEmptyPassword      = errors.New("password is empty")
)

// AuthConfig holds the token signing settings.
type AuthConfig struct {
	SigningKey string
	TokenTTL   time.Duration
}

// OperatorAuth registers operators and issues the bearer tokens that
// identify them on the link endpoints.
type OperatorAuth struct {
	repo repository.Operators
	key  []byte
	ttl  time.Duration
	now  func() time.Time
}

func NewOperatorAuth(repo repository.Operators, cfg AuthConfig) *OperatorAuth {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	return &OperatorAuth{repo: repo, key: []byte(cfg.SigningKey), ttl: cfg.TokenTTL, now: time.Now}
}

// operatorClaims carries the operator identity so the middleware needs no
// database lookup per request.
type operatorClaims struct {
	jwt.RegisteredClaims
	OperatorID int    `json:"oid"`
	Username   string `json:"name"`
}

// SignUp creates an operator. Usernames are trimmed; repository.ErrUsernameTaken
// is passed through.
func (s *OperatorAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, ErrEmptyUsername
	}
	if strings.TrimSpace(password) == "" {
		return 0, ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.Create(ctx, username, string(hash))
}

// SignIn checks the credentials and returns a signed token. Unknown users
// and wrong passwords both yield ErrInvalidCredentials.
func (s *OperatorAuth) SignIn(ctx context.Context, username, password string) (string, error) {
	op, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", err
	}
	if op == nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueToken(models.Operator{ID: op.ID, Username: op.Username})
}

// ParseToken verifies accessToken and returns the operator it names.
func (s *OperatorAuth) ParseToken(accessToken string) (models.Operator, error) {
	claims := &operatorClaims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return models.Operator{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.OperatorID <= 0 || claims.Username == "" {
		return models.Operator{}, ErrInvalidToken
	}
	return models.Operator{ID: claims.OperatorID, Username: claims.Username}, nil
}

func (s *OperatorAuth) issueToken(op models.Operator) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &operatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   op.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OperatorID: op.ID,
		Username:   op.Username,
	})
	return token.SignedString(s.key)
}
