package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/repository"
	"github.com/fkash/fkash-backend/internal/testutil"
)

func setupUserService(t *testing.T, db *sql.DB) *UserService {
	t.Helper()
	return NewUserService(
		repository.NewUserRepository(db),
		repository.NewAccountRepository(db),
		db,
		500_000,
	)
}

func TestCreateUser_ClientStartsAtZero(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupUserService(t, db)
	admin := testutil.SeedTestUser(t, db, "+221770000001", "Admin", domain.RoleAdmin)

	user, account, err := svc.CreateUser(context.Background(), CreateUserRequest{
		ActorUserID: admin.ID,
		Phone:       "+221770000002",
		Name:        "Awa Ndiaye",
		PIN:         "4321",
		Role:        domain.RoleClient,
	})
	require.NoError(t, err)

	assert.Equal(t, "+221770000002", user.Phone)
	assert.Equal(t, "Awa Ndiaye", user.Name)
	assert.Equal(t, domain.RoleClient, user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PinHash), []byte("4321")))

	assert.Equal(t, user.ID, account.UserID)
	assert.Equal(t, int64(0), account.Balance)
	assert.Equal(t, domain.AccountStatusActive, account.Status)
	assert.Equal(t, int64(0), testutil.GetAccountBalance(t, db, account.ID))
}

func TestCreateUser_ManagerGetsOpeningFloat(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupUserService(t, db)
	admin := testutil.SeedTestUser(t, db, "+221770000001", "Admin", domain.RoleAdmin)

	_, account, err := svc.CreateUser(context.Background(), CreateUserRequest{
		ActorUserID: admin.ID,
		Phone:       "+221770000003",
		Name:        "Moussa Fall",
		PIN:         "9876",
		Role:        domain.RoleManager,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(500_000), account.Balance)
	assert.Equal(t, int64(500_000), testutil.GetAccountBalance(t, db, account.ID))
}

func TestCreateUser_RequiresAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupUserService(t, db)
	manager := testutil.SeedTestUser(t, db, "+221770000001", "Manager", domain.RoleManager)

	_, _, err := svc.CreateUser(context.Background(), CreateUserRequest{
		ActorUserID: manager.ID,
		Phone:       "+221770000004",
		Name:        "Fatou Sarr",
		PIN:         "1111",
		Role:        domain.RoleClient,
	})
	require.ErrorIs(t, err, domain.ErrAdminOnly)
}

func TestCreateUser_DuplicatePhone(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupUserService(t, db)
	admin := testutil.SeedTestUser(t, db, "+221770000001", "Admin", domain.RoleAdmin)
	testutil.SeedTestUser(t, db, "+221770000005", "Existing", domain.RoleClient)

	_, _, err := svc.CreateUser(context.Background(), CreateUserRequest{
		ActorUserID: admin.ID,
		Phone:       "+221770000005",
		Name:        "Shadow",
		PIN:         "2222",
		Role:        domain.RoleClient,
	})
	require.ErrorIs(t, err, domain.ErrUserExists)

	// The rolled-back transaction must not leave a second row or an orphan
	// account behind.
	var users int
	require.NoError(t, db.QueryRow(
		`SELECT count(*) FROM users WHERE phone = $1`, "+221770000005",
	).Scan(&users))
	assert.Equal(t, 1, users)
}

func TestCreateUser_RejectsBadInput(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupUserService(t, db)
	admin := testutil.SeedTestUser(t, db, "+221770000001", "Admin", domain.RoleAdmin)

	tests := []struct {
		name    string
		phone   string
		pin     string
		role    domain.UserRole
		wantErr error
	}{
		{"unknown role", "+221770000006", "1234", domain.UserRole("auditor"), domain.ErrInvalidRole},
		{"pin too short", "+221770000006", "123", domain.RoleClient, domain.ErrInvalidPIN},
		{"pin with letters", "+221770000006", "12ab", domain.RoleClient, domain.ErrInvalidPIN},
		{"phone without plus", "221770000006", "1234", domain.RoleClient, domain.ErrInvalidPhone},
		{"phone with letters", "+2217700000ab", "1234", domain.RoleClient, domain.ErrInvalidPhone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.CreateUser(context.Background(), CreateUserRequest{
				ActorUserID: admin.ID,
				Phone:       tt.phone,
				Name:        "Test",
				PIN:         tt.pin,
				Role:        tt.role,
			})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupUserService(t, db)
	user := testutil.SeedTestUser(t, db, "+221770000007", "Awa", domain.RoleClient)
	acct := testutil.SeedTestAccount(t, db, user.ID, 12_500)

	gotUser, gotAcct, err := svc.GetProfile(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, gotUser.ID)
	assert.Equal(t, acct.ID, gotAcct.ID)
	assert.Equal(t, int64(12_500), gotAcct.Balance)
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		ok    bool
	}{
		{"senegal mobile", "+221770000001", true},
		{"short country code", "+3360000001", true},
		{"missing plus", "221770000001", false},
		{"letters", "+22177abc0001", false},
		{"too short", "+2217", false},
		{"too long", "+2217700000011223344", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePhone(tt.phone)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, domain.ErrInvalidPhone)
			}
		})
	}
}

func TestValidatePIN(t *testing.T) {
	tests := []struct {
		name string
		pin  string
		ok   bool
	}{
		{"four digits", "0000", true},
		{"three digits", "123", false},
		{"five digits", "12345", false},
		{"letters", "12a4", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePIN(tt.pin)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, domain.ErrInvalidPIN)
			}
		})
	}
}
