package users

import (
	"context"
	"testing"

	"github.com/Zaramlt59/TMS-sub001/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) *Service {
	t.Helper()

	db := testutils.SetupTestDB(t, &User{})
	svc, err := NewService(db, testutils.GetTestConfig(), nil)
	require.NoError(t, err)
	return svc
}

func createAlice(t *testing.T, svc *Service) *User {
	t.Helper()

	u := testutils.TestUsers.Alice
	user, err := svc.Create(context.Background(), CreateUser{
		Username: u.Username,
		Email:    u.Email,
		Password: u.Password,
		Role:     Role(u.Role),
		District: "Aizawl",
	})
	require.NoError(t, err)
	return user
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("stores a bcrypt hash", func(t *testing.T) {
		svc := setupService(t)
		user := createAlice(t, svc)

		assert.NotZero(t, user.ID)
		assert.True(t, user.IsActive)
		assert.NotEqual(t, testutils.TestUsers.Alice.Password, user.PasswordHash)
		assert.NotNil(t, user.PasswordChangedAt)
		assert.Equal(t, RoleTeacher, user.Role)
	})

	t.Run("rejects duplicate username case-insensitively", func(t *testing.T) {
		svc := setupService(t)
		createAlice(t, svc)

		_, err := svc.Create(ctx, CreateUser{Username: "ALICE", Email: "other@school.example", Password: testutils.TestPasswords.Valid})
		testutils.AssertErrorType(t, ErrUserExists, err)
	})

	t.Run("rejects weak password", func(t *testing.T) {
		svc := setupService(t)

		_, err := svc.Create(ctx, CreateUser{Username: "carol", Email: "carol@school.example", Password: testutils.TestPasswords.NoNumber})
		testutils.AssertErrorType(t, ErrWeakPassword, err)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		svc := setupService(t)

		_, err := svc.Create(ctx, CreateUser{Username: "carol", Email: "carol@school.example", Password: testutils.TestPasswords.Valid, Role: "janitor"})
		testutils.AssertErrorType(t, ErrInvalidRole, err)
	})
}

func TestService_Find(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)
	alice := createAlice(t, svc)

	byName, err := svc.FindByUsername(ctx, "Alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, alice.ID, byName.ID)

	byEmail, err := svc.FindByEmail(ctx, "ALICE@school.example")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, alice.ID, byEmail.ID)

	byID, err := svc.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aizawl", byID.District)

	missing, err := svc.FindByUsername(ctx, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestService_VerifyPassword(t *testing.T) {
	svc := setupService(t)
	alice := createAlice(t, svc)

	assert.True(t, svc.VerifyPassword(alice, testutils.TestUsers.Alice.Password))
	assert.False(t, svc.VerifyPassword(alice, testutils.TestPasswords.Other))
	assert.False(t, svc.VerifyPassword(nil, testutils.TestUsers.Alice.Password))
}

func TestService_ValidatePassword(t *testing.T) {
	svc := setupService(t)

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", testutils.TestPasswords.Valid, false},
		{"with special", testutils.TestPasswords.WithSpecial, false},
		{"too short", testutils.TestPasswords.TooShort, true},
		{"no upper", testutils.TestPasswords.NoUpper, true},
		{"no lower", testutils.TestPasswords.NoLower, true},
		{"no number", testutils.TestPasswords.NoNumber, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ValidatePassword(tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrWeakPassword)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)
	alice := createAlice(t, svc)

	require.NoError(t, svc.UpdatePassword(ctx, alice.ID, testutils.TestPasswords.Other))

	updated, err := svc.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, svc.VerifyPassword(updated, testutils.TestPasswords.Other))
	assert.False(t, svc.VerifyPassword(updated, testutils.TestUsers.Alice.Password))

	assert.ErrorIs(t, svc.UpdatePassword(ctx, 9999, testutils.TestPasswords.Other), ErrUserNotFound)
	assert.ErrorIs(t, svc.UpdatePassword(ctx, alice.ID, "short"), ErrWeakPassword)
}

func TestService_UpdateLastLogin(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)
	alice := createAlice(t, svc)
	require.Nil(t, alice.LastLoginAt)

	require.NoError(t, svc.UpdateLastLogin(ctx, alice.ID))

	updated, err := svc.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, updated.LastLoginAt)
}

func TestService_EnsureBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	db := testutils.SetupTestDB(t, &User{})
	cfg := testutils.GetTestConfig()
	cfg.Bootstrap.AdminUsername = "root"
	cfg.Bootstrap.AdminPassword = testutils.TestPasswords.Valid

	svc, err := NewService(db, cfg, nil)
	require.NoError(t, err)

	require.NoError(t, svc.EnsureBootstrapAdmin(ctx))
	require.NoError(t, svc.EnsureBootstrapAdmin(ctx))

	var count int64
	require.NoError(t, db.Model(&User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	admin, err := svc.FindByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, RoleSuperAdmin, admin.Role)
	assert.Equal(t, "root@localhost", admin.Email)
}

func TestService_EnsureBootstrapAdmin_Unconfigured(t *testing.T) {
	svc := setupService(t)

	assert.NoError(t, svc.EnsureBootstrapAdmin(context.Background()))
}
