package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
)

// Claims represents JWT claims with token type, user ID and role.
type Claims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role,omitempty"`
	TokenType string    `json:"typ"`
}

// JWT implements TokenManager backed by symmetric HMAC.
type JWT struct {
	secretKey  string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewJWT creates a new JWT token manager with the provided secret key.
func NewJWT(secretKey string, accessTTL, refreshTTL time.Duration) model.TokenManager {
	return &JWT{secretKey: secretKey, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

func (j *JWT) AccessTTL() time.Duration  { return j.accessTTL }
func (j *JWT) RefreshTTL() time.Duration { return j.refreshTTL }

// GenerateAccessToken creates a short-lived access token. The role claim
// is a per-request cache only; the gateway re-resolves the role from the
// identity store before authorizing.
func (j *JWT) GenerateAccessToken(userID uuid.UUID, role model.Role) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTTL)),
		},
		UserID:    userID,
		Role:      string(role),
		TokenType: typeAccess,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// GenerateRefreshToken creates a long-lived refresh token and returns its JTI.
func (j *JWT) GenerateRefreshToken(userID uuid.UUID) (string, string, error) {
	now := time.Now()
	jti := uuid.NewString()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.refreshTTL)),
		},
		UserID:    userID,
		TokenType: typeRefresh,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return tokenString, jti, nil
}

// ParseAccessToken validates an access token and extracts its claims.
func (j *JWT) ParseAccessToken(tokenString string) (model.AccessClaims, error) {
	claims, err := j.parse(tokenString, typeAccess)
	if err != nil {
		return model.AccessClaims{}, err
	}

	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return model.AccessClaims{}, fmt.Errorf("failed to parse role claim: %w", err)
	}

	return model.AccessClaims{
		UserID:    claims.UserID,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ParseRefreshToken validates a refresh token and extracts the user ID and JTI.
func (j *JWT) ParseRefreshToken(tokenString string) (uuid.UUID, string, error) {
	claims, err := j.parse(tokenString, typeRefresh)
	if err != nil {
		return uuid.Nil, "", err
	}
	return claims.UserID, claims.ID, nil
}

func (j *JWT) parse(tokenString, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s token: %w", wantType, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%s token is invalid", wantType)
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("token type mismatch: %s", claims.TokenType)
	}
	return claims, nil
}
