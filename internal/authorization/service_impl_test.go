package authorization

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
		CREATE TABLE tenant_members (
			tenant_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			PRIMARY KEY (tenant_id, user_id)
		)
	`).Error)

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	svc := NewService(Params{DB: db, Log: zap.NewNop(), Enforcer: enforcer})
	return svc, db
}

func addMember(t *testing.T, db *gorm.DB, tenantID, userID int64, role string) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO tenant_members (tenant_id, user_id, role) VALUES (?, ?, ?)`,
		tenantID, userID, role,
	).Error)
}

func TestAuthorizeByRole(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	addMember(t, db, 100, 1, "member")
	addMember(t, db, 100, 2, "admin")
	addMember(t, db, 100, 3, "owner")

	// Members are read-only.
	require.NoError(t, svc.Authorize(ctx, "user:1", "100", ObjectBillingOrder, ActionView))
	require.ErrorIs(t, svc.Authorize(ctx, "user:1", "100", ObjectBillingOrder, ActionCreate), ErrForbidden)
	require.ErrorIs(t, svc.Authorize(ctx, "user:1", "100", ObjectBillingOrder, ActionCancel), ErrForbidden)

	// Admins and owners manage billing orders.
	require.NoError(t, svc.Authorize(ctx, "user:2", "100", ObjectBillingOrder, ActionCreate))
	require.NoError(t, svc.Authorize(ctx, "user:2", "100", ObjectBillingOrder, ActionCancel))
	require.NoError(t, svc.Authorize(ctx, "user:3", "100", ObjectBillingOrder, ActionCreate))
}

func TestAuthorizeNonMemberForbidden(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	addMember(t, db, 100, 1, "admin")

	// Not a member of tenant 200.
	require.ErrorIs(t, svc.Authorize(ctx, "user:1", "200", ObjectBillingOrder, ActionView), ErrForbidden)

	// Unknown user entirely.
	require.ErrorIs(t, svc.Authorize(ctx, "user:99", "100", ObjectBillingOrder, ActionView), ErrForbidden)
}

func TestAuthorizeSystemActor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, "system", "100", ObjectBillingOrder, ActionCreate))
	require.NoError(t, svc.Authorize(ctx, "system", "100", ObjectSubscription, ActionView))
}

func TestAuthorizeInvalidInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.Authorize(ctx, "", "100", ObjectBillingOrder, ActionView), ErrInvalidActor)
	require.ErrorIs(t, svc.Authorize(ctx, "user:1", "", ObjectBillingOrder, ActionView), ErrInvalidTenant)
	require.ErrorIs(t, svc.Authorize(ctx, "user:1", "100", "", ActionView), ErrInvalidObject)
	require.ErrorIs(t, svc.Authorize(ctx, "user:1", "100", ObjectBillingOrder, ""), ErrInvalidAction)
	require.ErrorIs(t, svc.Authorize(ctx, "robot:1", "100", ObjectBillingOrder, ActionView), ErrInvalidActor)
	require.ErrorIs(t, svc.Authorize(ctx, "user:abc", "100", ObjectBillingOrder, ActionView), ErrInvalidActor)
}
