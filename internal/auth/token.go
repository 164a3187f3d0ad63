package auth

import (
	"errors"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Claims describes JWT payload.
type Claims struct {
	CompanyID int64       `json:"company_id"`
	UserID    int64       `json:"user_id"`
	Role      domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the explicit caller context.
func (c *Claims) Actor() domain.Actor {
	return domain.Actor{CompanyID: c.CompanyID, UserID: c.UserID, Role: c.Role}
}

// GenerateToken builds and signs a JWT for actor.
func (tm *TokenManager) GenerateToken(actor domain.Actor) (string, time.Time, error) {
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		CompanyID: actor.CompanyID,
		UserID:    actor.UserID,
		Role:      actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(actor.UserID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.CompanyID <= 0 || claims.UserID <= 0 {
		return nil, errors.New("token missing company or user")
	}
	switch claims.Role {
	case domain.RoleAdmin, domain.RoleAgent, domain.RoleContact:
	default:
		return nil, errors.New("token carries unknown role")
	}
	return claims, nil
}
