package auth_test

import (
	"context"
	"testing"

	"github.com/monocle-dev/taskboard/internal/auth"
	"github.com/monocle-dev/taskboard/internal/models"
	"github.com/monocle-dev/taskboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)

	assert.NotEqual(t, "hunter2", hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))
}

func TestAuthenticate(t *testing.T) {
	conn := testutil.NewDB(t)
	users := testutil.SeedUsers(t, conn)
	authenticator := auth.NewAuthenticator(conn, nil)
	ctx := context.Background()

	user, err := authenticator.Authenticate(ctx, "bob", testutil.Password)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, users.Bob.ID, user.ID)
	assert.Equal(t, models.RoleEmployee, user.Role)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "bob", "wrong"},
		{"unknown user", "mallory", testutil.Password},
		{"empty password", "bob", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := authenticator.Authenticate(ctx, tt.username, tt.password)
			require.NoError(t, err)
			assert.Nil(t, user)
		})
	}
}
