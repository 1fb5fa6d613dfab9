package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ovoronin/talkline-server/internal/store/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test-clients",
		TTL:      time.Hour,
	}
	return NewService(st, cfg)
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	token, err := svc.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate register token: %v", err)
	}
	if claims.Username != "alice" || claims.UserID == "" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	loginToken, err := svc.Login(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	loginClaims, err := svc.ValidateToken(loginToken)
	if err != nil {
		t.Fatalf("validate login token: %v", err)
	}
	if loginClaims.UserID != claims.UserID {
		t.Fatal("login and register tokens must identify the same user")
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.Register(ctx, "alice", "secret123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "different"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.Register(ctx, "al", "secret123"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "short"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.Register(ctx, "alice", "secret123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangeUsername(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	token, err := svc.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if _, err := svc.Register(ctx, "bob", "secret123"); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	if _, err := svc.ChangeUsername(ctx, claims.UserID, "bob"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists for taken name, got %v", err)
	}
	if _, err := svc.ChangeUsername(ctx, claims.UserID, "al"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}

	renamed, err := svc.ChangeUsername(ctx, claims.UserID, "alicia")
	if err != nil {
		t.Fatalf("change username: %v", err)
	}
	renamedClaims, err := svc.ValidateToken(renamed)
	if err != nil {
		t.Fatalf("validate renamed token: %v", err)
	}
	if renamedClaims.Username != "alicia" || renamedClaims.UserID != claims.UserID {
		t.Fatalf("unexpected claims after rename: %+v", renamedClaims)
	}

	// The old name is free again; logging in uses the new one.
	if _, err := svc.Login(ctx, "alicia", "secret123"); err != nil {
		t.Fatalf("login with new name: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for old name, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	token, err := svc.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if err := svc.ChangePassword(ctx, claims.UserID, "wrong-pass", "newsecret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, claims.UserID, "secret123", "tiny"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}

	if err := svc.ChangePassword(ctx, claims.UserID, "secret123", "newsecret"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "newsecret"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for old password, got %v", err)
	}
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	svc := newTestService(t)

	otherCfg := &JWTConfig{
		Secret:   []byte("other-secret"),
		Issuer:   "test",
		Audience: "test-clients",
		TTL:      time.Hour,
	}
	token, err := GenerateToken(otherCfg, "some-id", "mallory")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("token signed with a foreign secret must not validate")
	}
}
