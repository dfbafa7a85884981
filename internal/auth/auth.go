package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/user"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Credentials is what login needs to know about a user.
type Credentials struct {
	UserID       int64  `db:"id"`
	PasswordHash string `db:"password_hash"`
	IsActive     bool   `db:"is_active"`
}

type RepositoryAPI interface {
	// GetCredentials returns nil without error for an unknown email.
	GetCredentials(ctx context.Context, email string) (*Credentials, error)
	// GetProfile returns nil without error for an unknown user.
	GetProfile(ctx context.Context, userID int64) (*user.Profile, error)
}

// TokenGenerator issues and validates signed tokens. Access and refresh
// tokens use different secrets and are never interchangeable.
type TokenGenerator interface {
	GenerateAccessToken(userID int64, email string) (string, error)
	GenerateRefreshToken(userID int64, email string) (string, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Claims represents JWT token claims
type Claims struct {
	UserID    int64  `json:"uid"`
	Email     string `json:"email"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
