package services

import (
	"context"
	"testing"
	"time"

	"github.com/minimart/apiserver/internal/store"
	"github.com/minimart/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[int]types.User{}}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) List(ctx context.Context) ([]types.User, error) {
	out := make([]types.User, 0, len(f.users))
	for id := 1; id < f.nextID; id++ {
		if user, ok := f.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	user.ID = f.nextID
	f.nextID++
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	if _, ok := f.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id int) error {
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, types.RoleUser, user.Role)
	assert.NotEqual(t, "s3cret!", user.PasswordHash, "password must be hashed")

	authed, err := svc.Authenticate(ctx, "alice", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "", "pw1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "", "pw2")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestChangeRole(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "", "pw")
	require.NoError(t, err)

	promoted, err := svc.ChangeRole(ctx, user.ID, types.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, promoted.Role)

	_, err = svc.ChangeRole(ctx, user.ID, "superuser")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.ChangeRole(ctx, 99, types.RoleUser)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEnsureAdmin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo)
	ctx := context.Background()

	admin, err := svc.EnsureAdmin(ctx, "admin", "first-pw")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, admin.Role)

	// A second run resets the password instead of failing.
	again, err := svc.EnsureAdmin(ctx, "admin", "second-pw")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)
	assert.NotEqual(t, admin.PasswordHash, again.PasswordHash)

	_, err = svc.Authenticate(ctx, "admin", "second-pw")
	assert.NoError(t, err)
}
