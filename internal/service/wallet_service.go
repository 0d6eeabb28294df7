package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"healthpay-wallet/internal/core/domain"
	"healthpay-wallet/internal/core/ports"
	"healthpay-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	idempotencyTTL       = 24 * time.Hour
	idempotencyHoldTTL   = time.Minute
	defaultRequestExpiry = 24
	defaultPageSize      = 20
	maxPageSize          = 100
	paymentIDBytes       = 8
	referenceBytes       = 6
)

// WalletOptions holds the tunables of the wallet service.
type WalletOptions struct {
	Currency    string
	LinkBaseURL string
	QRTTL       time.Duration
}

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	userRepo    ports.UserRepository
	walletRepo  ports.WalletRepository
	txRepo      ports.TransactionRepository
	transactor  ports.DBTransactor
	intentStore ports.PaymentIntentStore
	idempCache  ports.IdempotencyCache
	hashSvc     ports.HashService
	renderer    ports.QRRenderer
	opts        WalletOptions
	log         zerolog.Logger
	now         func() time.Time
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	intentStore ports.PaymentIntentStore,
	idempCache ports.IdempotencyCache,
	hashSvc ports.HashService,
	renderer ports.QRRenderer,
	opts WalletOptions,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		userRepo:    userRepo,
		walletRepo:  walletRepo,
		txRepo:      txRepo,
		transactor:  transactor,
		intentStore: intentStore,
		idempCache:  idempCache,
		hashSvc:     hashSvc,
		renderer:    renderer,
		opts:        opts,
		log:         log,
		now:         time.Now,
	}
}

// GetBalance returns a fresh balance snapshot for the user.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.WalletBalance, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}

	pending, err := s.txRepo.PendingTotal(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("pending total: %w", err))
	}

	return &domain.WalletBalance{
		Available:   wallet.Balance,
		Pending:     pending,
		Currency:    wallet.Currency,
		LastUpdated: s.now().UTC(),
	}, nil
}

// Send moves money from the caller's wallet to the wallet registered under
// the recipient phone. A supplied PIN must match; an omitted PIN is accepted
// because the device confirms the send locally.
func (s *WalletServiceImpl) Send(ctx context.Context, req ports.SendRequest) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if strings.TrimSpace(req.RecipientPhone) == "" {
		return nil, apperror.Validation("recipient_phone is required")
	}

	idempKey := ""
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(req.UserID, "send", req.IdempotencyKey)
	}
	return s.idempotent(ctx, idempKey, func() (*domain.Transaction, error) {
		return s.send(ctx, req)
	})
}

func (s *WalletServiceImpl) send(ctx context.Context, req ports.SendRequest) (*domain.Transaction, error) {
	sender, err := s.loadUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if req.PIN != "" {
		if err := s.verifyPIN(sender, req.PIN); err != nil {
			return nil, err
		}
	}

	recipient, err := s.userRepo.GetByPhone(ctx, req.RecipientPhone)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("find recipient: %w", err))
	}
	if recipient == nil {
		return nil, apperror.ErrRecipientNotFound()
	}
	if recipient.ID == sender.ID {
		return nil, apperror.ErrSelfTransfer()
	}

	description := req.Description
	if description == "" {
		description = domain.DefaultPaymentDescription
	}
	return s.transfer(ctx, sender, recipient, req.Amount, description, nil)
}

// RequestPayment creates a shareable payment link owned by the caller.
func (s *WalletServiceImpl) RequestPayment(ctx context.Context, userID uuid.UUID, req domain.RequestPaymentRequest) (*domain.PaymentLink, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	hours := req.ExpiresInHours
	if hours <= 0 {
		hours = defaultRequestExpiry
	}

	owner, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(hours) * time.Hour
	amount := req.Amount
	intent, err := s.saveIntent(ctx, domain.IntentKindLink, owner.ID, &amount, req.Description, ttl)
	if err != nil {
		return nil, err
	}

	qrData := domain.BuildQRPayload(domain.QRCodeData{
		Type:           domain.QRTypeRequest,
		PaymentID:      intent.ID,
		Amount:         &amount,
		RecipientPhone: owner.Phone,
		RecipientName:  owner.FullName,
		Description:    req.Description,
		ExpiresAt:      &intent.ExpiresAt,
	})

	return &domain.PaymentLink{
		RequestID:   intent.ID,
		Link:        s.opts.LinkBaseURL + intent.ID,
		QRCode:      qrData,
		Amount:      amount,
		Currency:    intent.Currency,
		Description: req.Description,
		ExpiresAt:   intent.ExpiresAt,
	}, nil
}

// ListTransactions returns one page of the caller's history, newest first.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, userID uuid.UUID, page, limit int) (*domain.TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	txns, total, err := s.txRepo.List(ctx, ports.TransactionListParams{
		UserID:   userID,
		Page:     page,
		PageSize: limit,
	})
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list transactions: %w", err))
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}

	return &domain.TransactionPage{
		Transactions: txns,
		Total:        total,
		Page:         page,
		HasMore:      page*limit < total,
	}, nil
}

// GetTransaction returns one of the caller's transactions.
func (s *WalletServiceImpl) GetTransaction(ctx context.Context, userID uuid.UUID, id string) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}
	return txn, nil
}

// GenerateQR creates a short-lived receive intent and its QR image.
// A nil amount lets the payer's QR carry none; such intents cannot be paid.
func (s *WalletServiceImpl) GenerateQR(ctx context.Context, userID uuid.UUID, req domain.GenerateQRRequest) (*domain.QRCodeResponse, error) {
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	owner, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	intent, err := s.saveIntent(ctx, domain.IntentKindQR, owner.ID, req.Amount, req.Description, s.opts.QRTTL)
	if err != nil {
		return nil, err
	}

	qrData := domain.BuildQRPayload(domain.QRCodeData{
		Type:           domain.QRTypePayment,
		PaymentID:      intent.ID,
		Amount:         req.Amount,
		RecipientPhone: owner.Phone,
		RecipientName:  owner.FullName,
		Description:    req.Description,
		ExpiresAt:      &intent.ExpiresAt,
	})

	image, err := s.renderer.Render(qrData)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("render qr: %w", err))
	}

	return &domain.QRCodeResponse{
		PaymentID: intent.ID,
		QRData:    qrData,
		QRImage:   image,
		Amount:    req.Amount,
		ExpiresAt: intent.ExpiresAt,
	}, nil
}

// ProcessQR pays the intent referenced by a scanned payload. The PIN is
// mandatory and checked before any money moves. The intent is consumed on
// success.
func (s *WalletServiceImpl) ProcessQR(ctx context.Context, req ports.ProcessQRRequest) (*domain.Transaction, error) {
	if req.PIN == "" {
		return nil, apperror.ErrInvalidPIN()
	}

	data, err := domain.ParseQRPayload(req.QRData)
	if err != nil {
		return nil, apperror.ErrInvalidQR()
	}
	if err := data.ValidateForPayment(s.now()); err != nil {
		if errors.Is(err, domain.ErrQRExpired) {
			return nil, apperror.ErrQRExpired()
		}
		return nil, apperror.ErrInvalidQR()
	}

	idempKey := ""
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(req.UserID, "qr", req.IdempotencyKey)
	}
	return s.idempotent(ctx, idempKey, func() (*domain.Transaction, error) {
		return s.payIntent(ctx, req, data)
	})
}

// payIntent claims the intent before moving money so that a single-use QR
// settles once. A claimed intent goes back to the store if the payment fails.
func (s *WalletServiceImpl) payIntent(ctx context.Context, req ports.ProcessQRRequest, data *domain.QRCodeData) (*domain.Transaction, error) {
	intent, err := s.intentStore.Take(ctx, data.PaymentID)
	if err != nil {
		return nil, apperror.ErrCacheError(fmt.Errorf("take intent: %w", err))
	}
	if intent == nil {
		return nil, apperror.ErrNotFound("Payment")
	}
	if intent.Expired(s.now()) {
		return nil, apperror.ErrQRExpired()
	}

	paid := false
	defer func() {
		if !paid {
			s.restoreIntent(ctx, intent)
		}
	}()

	amount := intent.Amount
	if amount == nil {
		amount = data.Amount
	}
	if amount == nil || !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	payer, err := s.loadUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.verifyPIN(payer, req.PIN); err != nil {
		return nil, err
	}

	owner, err := s.userRepo.GetByID(ctx, intent.OwnerID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("find intent owner: %w", err))
	}
	if owner == nil {
		return nil, apperror.ErrRecipientNotFound()
	}
	if owner.ID == payer.ID {
		return nil, apperror.ErrSelfTransfer()
	}

	description := intent.Description
	if description == "" {
		description = domain.DefaultPaymentDescription
	}

	txn, err := s.transfer(ctx, payer, owner, *amount, description, map[string]string{
		"payment_id": intent.ID,
		"channel":    strings.ToLower(string(intent.Kind)),
	})
	if err != nil {
		return nil, err
	}
	paid = true
	return txn, nil
}

// restoreIntent puts back an intent whose payment did not go through, for
// the rest of its lifetime.
func (s *WalletServiceImpl) restoreIntent(ctx context.Context, intent *domain.PaymentIntent) {
	ttl := intent.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	if err := s.intentStore.Save(context.WithoutCancel(ctx), intent, ttl); err != nil {
		s.log.Warn().Err(err).Str("payment_id", intent.ID).Msg("failed to restore unpaid intent")
	}
}

// transfer debits from and credits to inside one database transaction.
// Wallets are locked in user-ID order so concurrent opposite transfers
// cannot deadlock. Returns the sender's ledger entry.
func (s *WalletServiceImpl) transfer(
	ctx context.Context,
	from, to *domain.User,
	amount decimal.Decimal,
	description string,
	metadata map[string]string,
) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	first, second := from.ID, to.ID
	if strings.Compare(first.String(), second.String()) > 0 {
		first, second = second, first
	}
	locked := make(map[uuid.UUID]*domain.Wallet, 2)
	for _, id := range []uuid.UUID{first, second} {
		w, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
		}
		if w == nil {
			return nil, apperror.ErrNotFound("Wallet")
		}
		locked[id] = w
	}
	fromWallet, toWallet := locked[from.ID], locked[to.ID]

	if fromWallet.Currency != toWallet.Currency {
		return nil, apperror.Validation("currency mismatch between wallets")
	}
	if fromWallet.Balance.LessThan(amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, fromWallet.ID, fromWallet.Balance.Sub(amount)); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("debit wallet: %w", err))
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, toWallet.ID, toWallet.Balance.Add(amount)); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("credit wallet: %w", err))
	}

	reference, err := generateRandomHex(referenceBytes)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate reference: %w", err))
	}
	reference = "REF" + strings.ToUpper(reference)

	now := s.now().UTC()
	entry := func(owner uuid.UUID, typ domain.TransactionType) *domain.Transaction {
		return &domain.Transaction{
			ID:              uuid.NewString(),
			UserID:          owner,
			Type:            typ,
			Status:          domain.TransactionStatusCompleted,
			Amount:          amount,
			Currency:        fromWallet.Currency,
			RecipientPhone:  to.Phone,
			RecipientName:   to.FullName,
			SenderPhone:     from.Phone,
			SenderName:      from.FullName,
			Description:     description,
			ReferenceNumber: reference,
			Metadata:        metadata,
			CreatedAt:       now,
			CompletedAt:     &now,
		}
	}
	sent := entry(from.ID, domain.TransactionTypeSent)
	received := entry(to.ID, domain.TransactionTypeReceived)

	if err := s.txRepo.Create(ctx, dbTx, sent); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create sent entry: %w", err))
	}
	if err := s.txRepo.Create(ctx, dbTx, received); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create received entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", sent.ID).
		Str("reference", reference).
		Str("from", from.ID.String()).
		Str("to", to.ID.String()).
		Str("amount", amount.String()).
		Msg("transfer completed")

	return sent, nil
}

func (s *WalletServiceImpl) loadUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("User")
	}
	return user, nil
}

func (s *WalletServiceImpl) verifyPIN(user *domain.User, pin string) error {
	ok, err := s.hashSvc.Verify(pin, user.PINHash)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("verify pin: %w", err))
	}
	if !ok {
		return apperror.ErrInvalidPIN()
	}
	return nil
}

func (s *WalletServiceImpl) saveIntent(
	ctx context.Context,
	kind domain.IntentKind,
	owner uuid.UUID,
	amount *decimal.Decimal,
	description string,
	ttl time.Duration,
) (*domain.PaymentIntent, error) {
	id, err := newPaymentID()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate payment id: %w", err))
	}

	now := s.now().UTC()
	intent := &domain.PaymentIntent{
		ID:          id,
		Kind:        kind,
		OwnerID:     owner,
		Amount:      amount,
		Currency:    s.opts.Currency,
		Description: description,
		ExpiresAt:   now.Add(ttl).Truncate(time.Second),
		CreatedAt:   now,
	}
	if err := s.intentStore.Save(ctx, intent, ttl); err != nil {
		return nil, apperror.ErrCacheError(fmt.Errorf("save intent: %w", err))
	}
	return intent, nil
}

// idempotent runs fn at most once per key. A completed request's
// transaction is replayed; a replay while the first request still runs is
// rejected. A failed run frees the key for a retry. An empty key, or a cache
// failure, runs fn unguarded.
func (s *WalletServiceImpl) idempotent(ctx context.Context, key string, fn func() (*domain.Transaction, error)) (*domain.Transaction, error) {
	if key == "" {
		return fn()
	}

	cached, reserved, err := s.idempCache.Reserve(ctx, key, idempotencyHoldTTL)
	switch {
	case err != nil:
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, processing request")
		return fn()
	case !reserved && cached == nil:
		return nil, apperror.ErrRequestInProgress()
	case !reserved:
		var txn domain.Transaction
		if err := json.Unmarshal(cached, &txn); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("discarding corrupt idempotency entry")
			return fn()
		}
		return &txn, nil
	}

	txn, err := fn()
	if err != nil {
		if rerr := s.idempCache.Release(ctx, key); rerr != nil {
			s.log.Warn().Err(rerr).Str("key", key).Msg("failed to release idempotency key")
		}
		return nil, err
	}
	s.storeIdempotent(ctx, key, txn)
	return txn, nil
}

func (s *WalletServiceImpl) storeIdempotent(ctx context.Context, key string, txn *domain.Transaction) {
	body, err := json.Marshal(txn)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to marshal idempotent response")
		return
	}
	if err := s.idempCache.Set(ctx, key, body, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}

// newPaymentID returns an ID that is also a valid short code.
func newPaymentID() (string, error) {
	h, err := generateRandomHex(paymentIDBytes)
	if err != nil {
		return "", err
	}
	return "HP" + strings.ToUpper(h), nil
}
