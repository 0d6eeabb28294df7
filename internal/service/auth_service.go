package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"healthpay-wallet/internal/core/domain"
	"healthpay-wallet/internal/core/ports"
	"healthpay-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const refreshTokenBytes = 32

// AuthOptions holds the tunables of the auth service.
type AuthOptions struct {
	RefreshTTL     time.Duration
	Currency       string
	InitialBalance decimal.Decimal
}

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo     ports.UserRepository
	walletRepo   ports.WalletRepository
	hashSvc      ports.HashService
	tokenSvc     ports.TokenService
	refreshStore ports.RefreshTokenStore
	transactor   ports.DBTransactor
	opts         AuthOptions
	log          zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	refreshStore ports.RefreshTokenStore,
	transactor ports.DBTransactor,
	opts AuthOptions,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:     userRepo,
		walletRepo:   walletRepo,
		hashSvc:      hashSvc,
		tokenSvc:     tokenSvc,
		refreshStore: refreshStore,
		transactor:   transactor,
		opts:         opts,
		log:          log,
	}
}

// Register creates a user and their wallet in one database transaction.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*domain.UserInfo, error) {
	existing, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	existing, err = s.userRepo.GetByPhone(ctx, req.Phone)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("check phone: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrPhoneExists()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}
	pinHash, err := s.hashSvc.Hash(req.PIN)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash pin: %w", err))
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Phone:        req.Phone,
		FullName:     req.FullName,
		PasswordHash: passwordHash,
		PINHash:      pinHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	wallet := &domain.Wallet{
		ID:        uuid.New(),
		UserID:    user.ID,
		Currency:  s.opts.Currency,
		Balance:   s.opts.InitialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.userRepo.Create(ctx, dbTx, user); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create user: %w", err))
	}
	if err := s.walletRepo.Create(ctx, dbTx, wallet); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create wallet: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("user registered")

	return user.Info(), nil
}

// Login validates credentials and issues an access/refresh token pair.
// The identifier may be a username or a phone number.
func (s *AuthServiceImpl) Login(ctx context.Context, identifier, password string) (*domain.AuthResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, identifier)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		user, err = s.userRepo.GetByPhone(ctx, identifier)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("find user by phone: %w", err))
		}
	}
	if user == nil {
		return nil, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return nil, apperror.ErrInvalidCredentials()
	}

	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token. The presented token is consumed whether
// or not the rest of the exchange succeeds.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResponse, error) {
	if refreshToken == "" {
		return nil, apperror.ErrInvalidRefreshToken()
	}

	userID, ok, err := s.refreshStore.Consume(ctx, refreshToken)
	if err != nil {
		return nil, apperror.ErrCacheError(fmt.Errorf("consume refresh token: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidRefreshToken()
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrInvalidRefreshToken()
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes every refresh token of the user. Access tokens stay valid
// until they expire.
func (s *AuthServiceImpl) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.refreshStore.RevokeAll(ctx, userID); err != nil {
		return apperror.ErrCacheError(fmt.Errorf("revoke refresh tokens: %w", err))
	}
	s.log.Info().Str("user_id", userID.String()).Msg("user logged out")
	return nil
}

func (s *AuthServiceImpl) issueTokens(ctx context.Context, user *domain.User) (*domain.AuthResponse, error) {
	accessToken, expiresAt, err := s.tokenSvc.Generate(user.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	refreshToken, err := generateRandomHex(refreshTokenBytes)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate refresh token: %w", err))
	}
	if err := s.refreshStore.Save(ctx, refreshToken, user.ID, s.opts.RefreshTTL); err != nil {
		return nil, apperror.ErrCacheError(fmt.Errorf("save refresh token: %w", err))
	}

	expiresIn := int64(time.Until(expiresAt).Round(time.Second) / time.Second)
	if expiresIn < 0 {
		expiresIn = 0
	}

	return &domain.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
		User:         user.Info(),
	}, nil
}

// generateRandomHex generates a random hex string of n bytes.
func generateRandomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
