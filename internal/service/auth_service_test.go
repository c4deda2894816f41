package service

import (
	"testing"
	"time"

	"github.com/stemsi/quiz-overview/internal/config"
	"github.com/stemsi/quiz-overview/internal/model"
)

func TestAuthServiceRoundTrip(t *testing.T) {
	auth := NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour})

	token, err := auth.GenerateToken(TokenTypeTeacher, 42, []string{string(model.PermissionQuizRegrade)})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != 42 || claims.TokenType != TokenTypeTeacher {
		t.Errorf("claims = %+v", claims)
	}
	if !claims.HasPermission(string(model.PermissionQuizRegrade)) || claims.HasPermission(string(model.PermissionQuizManage)) {
		t.Errorf("permissions = %v", claims.Permissions)
	}
}

func TestAuthServiceRejectsForeignSecret(t *testing.T) {
	issuer := NewAuthService(&config.Config{JWTSecret: "one", JWTExpiry: time.Hour})
	verifier := NewAuthService(&config.Config{JWTSecret: "two", JWTExpiry: time.Hour})

	token, err := issuer.GenerateToken(TokenTypeTeacher, 1, nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := verifier.ValidateToken(token); err == nil {
		t.Error("expected validation failure")
	}
}

func TestAuthServiceRejectsExpired(t *testing.T) {
	auth := NewAuthService(&config.Config{JWTSecret: "s", JWTExpiry: -time.Minute})
	token, err := auth.GenerateToken(TokenTypeTeacher, 1, nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := auth.ValidateToken(token); err == nil {
		t.Error("expected expired token to fail")
	}
}
