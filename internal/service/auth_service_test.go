package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"healthpay-wallet/internal/core/domain"
	"healthpay-wallet/internal/core/ports"
	"healthpay-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type authTestDeps struct {
	svc          *AuthServiceImpl
	userRepo     *mocks.MockUserRepository
	walletRepo   *mocks.MockWalletRepository
	hashSvc      *mocks.MockHashService
	tokenSvc     *mocks.MockTokenService
	refreshStore *mocks.MockRefreshTokenStore
	transactor   *mocks.MockDBTransactor
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		userRepo:     mocks.NewMockUserRepository(ctrl),
		walletRepo:   mocks.NewMockWalletRepository(ctrl),
		hashSvc:      mocks.NewMockHashService(ctrl),
		tokenSvc:     mocks.NewMockTokenService(ctrl),
		refreshStore: mocks.NewMockRefreshTokenStore(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
	}
	d.svc = NewAuthService(d.userRepo, d.walletRepo, d.hashSvc, d.tokenSvc, d.refreshStore, d.transactor,
		AuthOptions{
			RefreshTTL:     720 * time.Hour,
			Currency:       "EGP",
			InitialBalance: decimal.NewFromInt(1000),
		}, zerolog.Nop())
	return d
}

func TestAuthService_Register_Success(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	tx := &mockTx{}

	req := ports.RegisterRequest{
		Username: "mona",
		Password: "StrongP@ss123",
		Phone:    "01000000001",
		FullName: "Mona Adel",
		PIN:      "1234",
	}

	d.userRepo.EXPECT().GetByUsername(ctx, "mona").Return(nil, nil)
	d.userRepo.EXPECT().GetByPhone(ctx, "01000000001").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("StrongP@ss123").Return("$argon2id$pw", nil)
	d.hashSvc.EXPECT().Hash("1234").Return("$argon2id$pin", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)

	var created *domain.User
	d.userRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, u *domain.User) error {
			created = u
			return nil
		})
	d.walletRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, w *domain.Wallet) error {
			assert.Equal(t, "EGP", w.Currency)
			assert.True(t, w.Balance.Equal(decimal.NewFromInt(1000)))
			assert.Equal(t, created.ID, w.UserID)
			return nil
		})

	info, err := d.svc.Register(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "$argon2id$pw", created.PasswordHash)
	assert.Equal(t, "$argon2id$pin", created.PINHash)
	assert.Equal(t, created.ID.String(), info.ID)
	assert.Equal(t, "mona", info.Username)
	assert.True(t, tx.committed)
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()

	d.userRepo.EXPECT().GetByUsername(ctx, "taken").Return(&domain.User{Username: "taken"}, nil)

	info, err := d.svc.Register(ctx, ports.RegisterRequest{Username: "taken", Phone: "0100"})
	assert.Nil(t, info)
	assertAppError(t, err, "AUTH_002")
}

func TestAuthService_Register_DuplicatePhone(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()

	d.userRepo.EXPECT().GetByUsername(ctx, "new").Return(nil, nil)
	d.userRepo.EXPECT().GetByPhone(ctx, "0100").Return(&domain.User{Phone: "0100"}, nil)

	_, err := d.svc.Register(ctx, ports.RegisterRequest{Username: "new", Phone: "0100"})
	assertAppError(t, err, "AUTH_006")
}

func TestAuthService_Register_WalletFailureRollsBack(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	tx := &mockTx{}

	d.userRepo.EXPECT().GetByUsername(ctx, gomock.Any()).Return(nil, nil)
	d.userRepo.EXPECT().GetByPhone(ctx, gomock.Any()).Return(nil, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("h", nil).Times(2)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.walletRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(errors.New("boom"))

	_, err := d.svc.Register(ctx, ports.RegisterRequest{Username: "u", Phone: "p", Password: "x", PIN: "1"})
	assertAppError(t, err, "SYS_001")
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestAuthService_Login_Success(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	userID := uuid.New()

	user := &domain.User{ID: userID, Username: "mona", Phone: "0100", PasswordHash: "$argon2id$pw"}
	d.userRepo.EXPECT().GetByUsername(ctx, "mona").Return(user, nil)
	d.hashSvc.EXPECT().Verify("secret", "$argon2id$pw").Return(true, nil)
	d.tokenSvc.EXPECT().Generate(userID).Return("jwt-access", time.Now().Add(15*time.Minute), nil)

	var savedToken string
	d.refreshStore.EXPECT().Save(ctx, gomock.Any(), userID, 720*time.Hour).DoAndReturn(
		func(_ context.Context, token string, _ uuid.UUID, _ time.Duration) error {
			savedToken = token
			return nil
		})

	resp, err := d.svc.Login(ctx, "mona", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-access", resp.AccessToken)
	assert.Equal(t, savedToken, resp.RefreshToken)
	assert.Len(t, resp.RefreshToken, 64)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.InDelta(t, 900, resp.ExpiresIn, 2)
	assert.Equal(t, userID.String(), resp.User.ID)
}

func TestAuthService_Login_ByPhone(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().GetByUsername(ctx, "01000000001").Return(nil, nil)
	d.userRepo.EXPECT().GetByPhone(ctx, "01000000001").Return(&domain.User{ID: userID, PasswordHash: "h"}, nil)
	d.hashSvc.EXPECT().Verify("pw", "h").Return(true, nil)
	d.tokenSvc.EXPECT().Generate(userID).Return("jwt", time.Now().Add(time.Minute), nil)
	d.refreshStore.EXPECT().Save(ctx, gomock.Any(), userID, gomock.Any()).Return(nil)

	resp, err := d.svc.Login(ctx, "01000000001", "pw")
	require.NoError(t, err)
	assert.Equal(t, "jwt", resp.AccessToken)
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()

	d.userRepo.EXPECT().GetByUsername(ctx, "ghost").Return(nil, nil)
	d.userRepo.EXPECT().GetByPhone(ctx, "ghost").Return(nil, nil)

	_, err := d.svc.Login(ctx, "ghost", "pw")
	assertAppError(t, err, "AUTH_001")
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()

	d.userRepo.EXPECT().GetByUsername(ctx, "mona").Return(&domain.User{PasswordHash: "h"}, nil)
	d.hashSvc.EXPECT().Verify("bad", "h").Return(false, nil)

	_, err := d.svc.Login(ctx, "mona", "bad")
	assertAppError(t, err, "AUTH_001")
}

func TestAuthService_Refresh_Rotates(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	userID := uuid.New()

	d.refreshStore.EXPECT().Consume(ctx, "old-refresh").Return(userID, true, nil)
	d.userRepo.EXPECT().GetByID(ctx, userID).Return(&domain.User{ID: userID}, nil)
	d.tokenSvc.EXPECT().Generate(userID).Return("new-access", time.Now().Add(time.Minute), nil)
	d.refreshStore.EXPECT().Save(ctx, gomock.Any(), userID, 720*time.Hour).Return(nil)

	resp, err := d.svc.Refresh(ctx, "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", resp.AccessToken)
	assert.NotEqual(t, "old-refresh", resp.RefreshToken)
}

func TestAuthService_Refresh_UnknownToken(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()

	d.refreshStore.EXPECT().Consume(ctx, "stale").Return(uuid.Nil, false, nil)

	_, err := d.svc.Refresh(ctx, "stale")
	assertAppError(t, err, "AUTH_004")
}

func TestAuthService_Refresh_EmptyToken(t *testing.T) {
	d := setupAuthService(t)

	_, err := d.svc.Refresh(context.Background(), "")
	assertAppError(t, err, "AUTH_004")
}

func TestAuthService_Refresh_StoreError(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()

	d.refreshStore.EXPECT().Consume(ctx, "tok").Return(uuid.Nil, false, errors.New("redis down"))

	_, err := d.svc.Refresh(ctx, "tok")
	assertAppError(t, err, "SYS_002")
}

func TestAuthService_Logout(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	userID := uuid.New()

	d.refreshStore.EXPECT().RevokeAll(ctx, userID).Return(nil)
	require.NoError(t, d.svc.Logout(ctx, userID))

	d.refreshStore.EXPECT().RevokeAll(ctx, userID).Return(errors.New("redis down"))
	assertAppError(t, d.svc.Logout(ctx, userID), "SYS_002")
}
