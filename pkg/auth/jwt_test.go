package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain"
	"github.com/google/uuid"
)

func testManager() *JWTManager {
	return NewJWTManager(config.JWTConfig{
		Secret:         "test-secret-that-is-long-enough-to-sign",
		AccessTokenTTL: 15 * time.Minute,
		Issuer:         "medbill-api",
	})
}

func TestIssueAndValidate(t *testing.T) {
	m := testManager()
	userID := uuid.New()

	tok, err := m.Issue(&domain.Claims{UserID: userID, Email: "cashier@hospital.test", Role: domain.RoleBilling}, 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tok.TokenType != "Bearer" || time.Until(tok.ExpiresAt) > 15*time.Minute {
		t.Errorf("token = %+v", tok)
	}

	claims, err := m.Validate(tok.AccessToken)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != userID || claims.Role != domain.RoleBilling || claims.Email != "cashier@hospital.test" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidate_Expired(t *testing.T) {
	m := testManager()
	tok, err := m.Issue(&domain.Claims{UserID: uuid.New(), Role: domain.RoleAdmin}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := m.Validate(tok.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	m := testManager()
	tok, err := m.Issue(&domain.Claims{UserID: uuid.New(), Role: domain.RoleDoctor}, 0)
	if err != nil {
		t.Fatal(err)
	}

	other := NewJWTManager(config.JWTConfig{Secret: "a-different-secret", Issuer: "medbill-api", AccessTokenTTL: time.Minute})
	wrongIssuer := NewJWTManager(config.JWTConfig{Secret: "test-secret-that-is-long-enough-to-sign", Issuer: "someone-else", AccessTokenTTL: time.Minute})

	tests := []struct {
		name  string
		m     *JWTManager
		token string
	}{
		{"garbage", m, "not.a.token"},
		{"tampered", m, tok.AccessToken + "x"},
		{"other secret", other, tok.AccessToken},
		{"other issuer", wrongIssuer, tok.AccessToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.m.Validate(tt.token); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("err = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestIssue_UnknownRole(t *testing.T) {
	_, err := testManager().Issue(&domain.Claims{UserID: uuid.New(), Role: "janitor"}, 0)
	if !errors.Is(err, ErrRoleInvalid) {
		t.Errorf("err = %v, want ErrRoleInvalid", err)
	}
}
