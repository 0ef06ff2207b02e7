package requestctx_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/testwelbi/eventboard/internal/audit"
	"github.com/testwelbi/eventboard/internal/permissions"
	"github.com/testwelbi/eventboard/internal/requestctx"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*permissions.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*permissions.User)
	return u, args.Error(1)
}

type mockRoleRepo struct {
	mock.Mock
}

func (m *mockRoleRepo) ListForUser(ctx context.Context, userID string) ([]permissions.Role, error) {
	args := m.Called(ctx, userID)
	roles, _ := args.Get(0).([]permissions.Role)
	return roles, args.Error(1)
}

type recordingAudit struct {
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) {
	r.events = append(r.events, e)
}

// TestPurpose: Validates that the builder compiles an ability from stored roles.
// Scope: Unit Test
// Expected: The context carries the user, the roles in order, and a matching ability; an audit event is emitted.
// Test Case ID: RCX-05
func TestBuilder_Build(t *testing.T) {
	users := new(mockUserRepo)
	roles := new(mockRoleRepo)
	rec := &recordingAudit{}

	user := &permissions.User{ID: "u1"}
	users.On("GetByID", mock.Anything, "u1").Return(user, nil)
	roles.On("ListForUser", mock.Anything, "u1").Return([]permissions.Role{
		{Name: permissions.RoleAdmin, Permissions: permissions.DefaultPermissions(permissions.RoleAdmin)},
		{Name: permissions.RoleUser, Permissions: permissions.DefaultPermissions(permissions.RoleUser)},
	}, nil)

	b := requestctx.NewBuilder(users, roles, nil, rec)
	rc, err := b.Build(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "u1", rc.UserID())
	assert.Equal(t, []string{permissions.RoleAdmin, permissions.RoleUser}, rc.RoleNames())
	assert.True(t, rc.Can(permissions.ActionDelete, permissions.SubjectEvent, map[string]any{"ownerId": "other"}))
	assert.Len(t, rc.Permissions(), len(permissions.DefaultPermissions(permissions.RoleAdmin))+len(permissions.DefaultPermissions(permissions.RoleUser)))

	require.Len(t, rec.events, 1)
	assert.Equal(t, audit.TypeAbilityBuilt, rec.events[0].Type)
	users.AssertExpectations(t)
	roles.AssertExpectations(t)
}

// TestPurpose: Validates that anonymous requests skip the repositories.
// Scope: Unit Test
// Expected: Anonymous context, no repository calls.
// Test Case ID: RCX-06
func TestBuilder_BuildAnonymous(t *testing.T) {
	users := new(mockUserRepo)
	roles := new(mockRoleRepo)

	rc, err := requestctx.NewBuilder(users, roles, nil, nil).Build(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, rc.IsAnonymous())

	users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	roles.AssertNotCalled(t, "ListForUser", mock.Anything, mock.Anything)
}

// TestPurpose: Validates error propagation from the repositories.
// Scope: Unit Test
// Expected: Unknown users surface ErrUserNotFound; role failures are wrapped.
// Test Case ID: RCX-07
func TestBuilder_BuildErrors(t *testing.T) {
	users := new(mockUserRepo)
	roles := new(mockRoleRepo)
	dbErr := errors.New("connection reset")

	users.On("GetByID", mock.Anything, "ghost").Return(nil, requestctx.ErrUserNotFound)
	users.On("GetByID", mock.Anything, "u1").Return(&permissions.User{ID: "u1"}, nil)
	roles.On("ListForUser", mock.Anything, "u1").Return(nil, dbErr)

	b := requestctx.NewBuilder(users, roles, nil, nil)

	_, err := b.Build(context.Background(), "ghost")
	assert.ErrorIs(t, err, requestctx.ErrUserNotFound)

	_, err = b.Build(context.Background(), "u1")
	assert.ErrorIs(t, err, dbErr)
}
