package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/goalstake/engine/internal/config"
	"github.com/goalstake/engine/internal/domain"
)

// Roles carried in the token.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// ──────────────────────────────────────────────────────────────────────────────
// JWT claims
// ──────────────────────────────────────────────────────────────────────────────

// AppClaims extends jwt.RegisteredClaims with the caller's role. Subject is
// the lowercased wallet address.
type AppClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	TokenType string `json:"type"`
}

// Wallet parses the subject.
func (c *AppClaims) Wallet() (domain.WalletID, error) {
	return domain.ParseWallet(c.Subject)
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthService
// ──────────────────────────────────────────────────────────────────────────────

// AuthService signs and verifies HS256 access tokens. Identity itself lives
// with whoever holds the shared secret; the engine only trusts the subject.
type AuthService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthService creates an AuthService.
func NewAuthService(cfg config.JWTConfig) *AuthService {
	return &AuthService{secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL, now: time.Now}
}

// IssueAccessToken signs a token for wallet. Used for development accounts
// and tests.
func (s *AuthService) IssueAccessToken(wallet domain.WalletID, role string) (string, error) {
	if role == "" {
		role = RoleMember
	}
	now := s.now().UTC()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   wallet.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Role:      role,
		TokenType: "access",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth_service.IssueAccessToken: %w", err)
	}
	return tok, nil
}

// ParseAccessToken validates signature, algorithm, expiry and token type.
func (s *AuthService) ParseAccessToken(tokenString string) (*AppClaims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}
	claims, ok := tok.Claims.(*AppClaims)
	if !ok || !tok.Valid || claims.TokenType != "access" {
		return nil, domain.ErrTokenInvalid
	}
	if _, err := claims.Wallet(); err != nil {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}

// ParseWallet is ParseAccessToken reduced to the subject, for the WS hub.
func (s *AuthService) ParseWallet(tokenString string) (domain.WalletID, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Wallet()
}
