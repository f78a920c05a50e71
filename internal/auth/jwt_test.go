package auth

import (
	"testing"
	"time"
)

func TestJWTManager_GenerateAndParse(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour)
	token, err := manager.GenerateToken("user-1", "user@example.com", "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := manager.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "user@example.com" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := manager.ParseToken(token + "tampered"); err == nil {
		t.Fatalf("expected parse error for tampered token")
	}
}

func TestJWTManager_EmptySecret(t *testing.T) {
	manager := NewJWTManager("", time.Hour)
	if _, err := manager.GenerateToken("user", "user@example.com", "user"); err == nil {
		t.Fatalf("expected error when secret is empty")
	}
}

func TestJWTManager_Audience(t *testing.T) {
	crm := NewJWTManager("secret", time.Hour, WithAudience("crm"))
	other := NewJWTManager("secret", time.Hour, WithAudience("billing"))
	plain := NewJWTManager("secret", time.Hour)

	token, err := crm.GenerateToken("user-1", "user@example.com", "sales")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := crm.ParseToken(token); err != nil {
		t.Fatalf("expected matching audience to validate: %v", err)
	}
	if _, err := other.ParseToken(token); err == nil {
		t.Fatalf("expected audience mismatch to fail")
	}

	unscoped, err := plain.GenerateToken("user-1", "user@example.com", "sales")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := crm.ParseToken(unscoped); err == nil {
		t.Fatalf("expected token without audience to be rejected")
	}
}

func TestJWTManager_RejectsExpiredAndAnonymous(t *testing.T) {
	expired := NewJWTManager("secret", time.Nanosecond)
	token, err := expired.GenerateToken("user-1", "", "sales")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	time.Sleep(2 * time.Second)
	if _, err := expired.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	manager := NewJWTManager("secret", time.Hour)
	anonymous, err := manager.GenerateToken("", "", "sales")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := manager.ParseToken(anonymous); err == nil {
		t.Fatalf("expected token without subject to fail")
	}
}
