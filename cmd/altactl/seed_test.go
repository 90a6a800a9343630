package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/altamontana/booking-api/internal/model"
	"github.com/altamontana/booking-api/internal/utils"
)

type recordingUsers struct{ saved []model.User }

func (r *recordingUsers) Upsert(_ context.Context, u model.User) error {
	r.saved = append(r.saved, u)
	return nil
}

func TestSeedAdmin(t *testing.T) {
	users := &recordingUsers{}

	err := seedAdmin(context.Background(), users, " admin ", "cordillera-2024", "ops@example.com", bcrypt.MinCost)

	require.NoError(t, err)
	require.Len(t, users.saved, 1)
	u := users.saved[0]
	assert.Equal(t, "admin", u.Username)
	assert.Equal(t, model.RoleAdmin, u.Role)
	assert.Equal(t, "ops@example.com", u.RecoveryEmail)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "cordillera-2024"))
}

func TestSeedAdmin_RejectsWeakInput(t *testing.T) {
	users := &recordingUsers{}

	assert.Error(t, seedAdmin(context.Background(), users, "", "cordillera-2024", "", bcrypt.MinCost))
	assert.ErrorIs(t, seedAdmin(context.Background(), users, "admin", "short", "", bcrypt.MinCost), utils.ErrWeakPassword)
	assert.Empty(t, users.saved)
}

func TestRootCommandWiring(t *testing.T) {
	cmd := seedAdminCmd()
	assert.Equal(t, "seed-admin", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("password"))
	assert.Equal(t, "purge-cache", purgeCacheCmd().Use)
}
