package auth

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/user"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash keeps the cost of a failed login for an unknown email close to
// that of a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// Service is the main auth service with dependencies
type Service struct {
	repo           RepositoryAPI
	tokenGenerator TokenGenerator
	bcryptCost     int
	logger         *slog.Logger
}

func NewService(repo RepositoryAPI, tokenGen TokenGenerator, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:           repo,
		tokenGenerator: tokenGen,
		bcryptCost:     bcryptCost,
		logger:         logger,
	}
}

func NewJWTTokenGenerator(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTTokenGenerator {
	return &JWTTokenGenerator{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
	}
}

// Authenticate validates credentials and returns tokens
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	creds, err := s.repo.GetCredentials(ctx, dto.Email)
	if err != nil {
		s.logger.Error("failed to load credentials", "error", err)
		return AuthTokens{}, errors.NewInternalError("failed to authenticate", err)
	}
	if creds == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(dto.Password))
		return AuthTokens{}, errors.ErrInvalidCredentials
	}
	if err := VerifyPassword(creds.PasswordHash, dto.Password); err != nil {
		return AuthTokens{}, errors.ErrInvalidCredentials
	}
	if !creds.IsActive {
		return AuthTokens{}, errors.ErrUserInactive
	}

	return s.issue(creds.UserID, dto.Email)
}

// RefreshTokens validates refresh token and returns new tokens
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	if err := (RefreshTokenDTO{RefreshToken: refreshToken}).Validate(); err != nil {
		return AuthTokens{}, err
	}

	claims, err := s.tokenGenerator.ValidateRefreshToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}

	profile, err := s.LoadProfile(ctx, claims.UserID)
	if err != nil {
		return AuthTokens{}, err
	}
	return s.issue(profile.ID, profile.Email)
}

func (s *Service) issue(userID int64, email string) (AuthTokens, error) {
	accessToken, err := s.tokenGenerator.GenerateAccessToken(userID, email)
	if err != nil {
		return AuthTokens{}, errors.NewInternalError("failed to issue token", err)
	}
	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(userID, email)
	if err != nil {
		return AuthTokens{}, errors.NewInternalError("failed to issue token", err)
	}

	var expiresIn int64
	if gen, ok := s.tokenGenerator.(*JWTTokenGenerator); ok {
		expiresIn = int64(gen.AccessTokenTTL.Seconds())
	}
	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
	}, nil
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateAccessToken(tokenString)
}

// LoadProfile returns the active user behind a token.
func (s *Service) LoadProfile(ctx context.Context, userID int64) (*user.Profile, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load user profile", "user_id", userID, "error", err)
		return nil, errors.NewInternalError("failed to load user", err)
	}
	if profile == nil {
		return nil, errors.ErrInvalidToken
	}
	if !profile.IsActive {
		return nil, errors.ErrUserInactive
	}
	return profile, nil
}

func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}

func (j *JWTTokenGenerator) GenerateAccessToken(userID int64, email string) (string, error) {
	return j.sign(userID, email, TokenTypeAccess, j.AccessTokenTTL, j.AccessTokenSecret)
}

func (j *JWTTokenGenerator) GenerateRefreshToken(userID int64, email string) (string, error) {
	return j.sign(userID, email, TokenTypeRefresh, j.RefreshTokenTTL, j.RefreshTokenSecret)
}

func (j *JWTTokenGenerator) sign(userID int64, email, tokenType string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		Email:     email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   fmt.Sprint(userID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (j *JWTTokenGenerator) ValidateAccessToken(tokenString string) (*Claims, error) {
	return j.validate(tokenString, TokenTypeAccess, j.AccessTokenSecret)
}

func (j *JWTTokenGenerator) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return j.validate(tokenString, TokenTypeRefresh, j.RefreshTokenSecret)
}

func (j *JWTTokenGenerator) validate(tokenString, tokenType string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if stdErrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrInvalidToken
	}
	if !token.Valid || claims.TokenType != tokenType || claims.UserID <= 0 {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
