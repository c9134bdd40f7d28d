package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// TokenService signs and validates artifact download tokens, so artifact
// URLs can be handed to external consumers without exposing the API key.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// ArtifactDownloadClaims are the JWT claims of one download token.
type ArtifactDownloadClaims struct {
	SessionID string `json:"session_id"`
	Artifact  string `json:"artifact"`
	jwt.RegisteredClaims
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if secret == "" {
		secret = "default-secret-key-change-in-production"
		logrus.Warn("JWT_SECRET not set, using default secret for artifact download tokens")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// IssueDownloadToken signs a short-lived token for one artifact of one
// session.
func (s *TokenService) IssueDownloadToken(sessionID, artifactName string) (string, error) {
	now := time.Now()
	claims := &ArtifactDownloadClaims{
		SessionID: sessionID,
		Artifact:  artifactName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "training-generator-backend",
			Subject:   sessionID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateDownloadToken checks a download token and returns the session id
// and artifact name it grants access to.
func (s *TokenService) ValidateDownloadToken(tokenString string) (string, string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ArtifactDownloadClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*ArtifactDownloadClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid token claims")
	}
	return claims.SessionID, claims.Artifact, nil
}
