package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"questions/internal/config"
)

func newTestService(expiration time.Duration) *Service {
	return NewService(&config.JWTConfig{
		Secret:     "test-secret",
		Issuer:     "decidim",
		Expiration: expiration,
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestService(time.Hour)

	token, err := svc.GenerateToken(42, "admin@example.org", true)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}

	if claims.UserID != 42 {
		t.Errorf("Expected user id 42, got %d", claims.UserID)
	}
	if claims.Email != "admin@example.org" {
		t.Errorf("Expected email admin@example.org, got %s", claims.Email)
	}
	if !claims.Admin {
		t.Error("Expected admin claim")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	svc := newTestService(-time.Minute)

	token, err := svc.GenerateToken(1, "user@example.org", false)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := newTestService(time.Hour).GenerateToken(1, "user@example.org", false)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	other := NewService(&config.JWTConfig{Secret: "other", Issuer: "decidim", Expiration: time.Hour})
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("Expected validation to fail with a different secret")
	}
}

func TestValidateTokenWrongIssuer(t *testing.T) {
	token, err := NewService(&config.JWTConfig{Secret: "test-secret", Issuer: "elsewhere", Expiration: time.Hour}).
		GenerateToken(1, "user@example.org", false)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := newTestService(time.Hour).ValidateToken(token); err == nil {
		t.Error("Expected validation to fail with a different issuer")
	}
}

func TestValidateTokenRejectsNoneAlgorithm(t *testing.T) {
	claims := JWTClaims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{Issuer: "decidim"}}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := newTestService(time.Hour).ValidateToken(signed); err == nil {
		t.Error("Expected unsigned token to be rejected")
	}
}
