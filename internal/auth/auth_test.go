package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/planora/planora/internal/models"
)

// fakeStorage is a map-backed UserStorage for authenticator tests.
type fakeStorage struct {
	byEmail map[string]*models.User
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{byEmail: make(map[string]*models.User)}
}

func (f *fakeStorage) CreateUser(_ context.Context, user *models.User) error {
	f.byEmail[user.Email] = user
	return nil
}

func (f *fakeStorage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return f.byEmail[email], nil
}

func (f *fakeStorage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func TestPasswordAuthenticator(t *testing.T) {
	ctx := context.Background()
	authenticator := NewPasswordAuthenticator(newFakeStorage())

	t.Run("register and authenticate", func(t *testing.T) {
		user, err := authenticator.Register(ctx, "alice@example.com", "Alice", "password123")
		if err != nil {
			t.Fatalf("failed to register: %v", err)
		}
		if user.PasswordHash == "password123" {
			t.Fatal("password stored in the clear")
		}

		got, err := authenticator.Authenticate(ctx, "alice@example.com", "password123")
		if err != nil {
			t.Fatalf("failed to authenticate: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("expected user %s, got %s", user.ID, got.ID)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := authenticator.Authenticate(ctx, "alice@example.com", "wrong")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := authenticator.Authenticate(ctx, "nobody@example.com", "password123")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := authenticator.Register(ctx, "alice@example.com", "Other", "password123")
		if !errors.Is(err, ErrEmailExists) {
			t.Errorf("expected ErrEmailExists, got %v", err)
		}
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := authenticator.Register(ctx, "bob@example.com", "Bob", "short")
		if !errors.Is(err, ErrWeakPassword) {
			t.Errorf("expected ErrWeakPassword, got %v", err)
		}
	})
}

func TestJWTManager(t *testing.T) {
	user := models.NewUser("alice@example.com", "Alice", "hash")

	t.Run("roundtrip", func(t *testing.T) {
		manager := NewJWTManager("test-secret", time.Hour)
		token, err := manager.Generate(user)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}

		claims, err := manager.Validate(token)
		if err != nil {
			t.Fatalf("failed to validate token: %v", err)
		}
		if claims.UserID != user.ID || claims.Email != user.Email {
			t.Errorf("unexpected claims: %+v", claims)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewJWTManager("secret-a", time.Hour).Generate(user)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		if _, err := NewJWTManager("secret-b", time.Hour).Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		manager := NewJWTManager("test-secret", -time.Minute)
		token, err := manager.Generate(user)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		if _, err := manager.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		manager := NewJWTManager("test-secret", time.Hour)
		if _, err := manager.Validate("not-a-token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})
}
