// Package wallet implements the wallet holder's operations on top of the
// session client and publishes their outcomes on observable slots.
package wallet

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"healthpay-wallet/internal/adapter/apiclient"
	"healthpay-wallet/internal/core/domain"
	"healthpay-wallet/pkg/observable"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	// RecentLimit is the size of the recent transactions list loaded on start.
	RecentLimit = 5
	// DefaultPageSize applies when a history page size is not positive.
	DefaultPageSize = 20
	// PaymentLinkHours is the lifetime requested for payment links.
	PaymentLinkHours = 24
)

// Validation messages.
const (
	MsgAmountNotPositive = "Amount must be greater than zero"
	MsgPhoneRequired     = "Recipient phone number is required"
	MsgPINRequired       = "PIN is required"
	MsgTransactionID     = "Transaction ID is required"
)

// API is the part of the session client wallet operations use.
type API interface {
	GetBalance(ctx context.Context) apiclient.Result[domain.WalletBalance]
	SendPayment(ctx context.Context, req domain.SendPaymentRequest) apiclient.Result[domain.Transaction]
	RequestPayment(ctx context.Context, req domain.RequestPaymentRequest) apiclient.Result[domain.PaymentLink]
	ListTransactions(ctx context.Context, page, limit int) apiclient.Result[domain.TransactionPage]
	GetTransaction(ctx context.Context, id string) apiclient.Result[domain.Transaction]
	GenerateQR(ctx context.Context, amount *decimal.Decimal, description string) apiclient.Result[domain.QRCodeResponse]
	ProcessQR(ctx context.Context, qrData, pin string) apiclient.Result[domain.Transaction]
	OnSessionExpired(fn func())
}

// Authenticator reports whether a usable session exists.
type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
}

// Service runs wallet operations. Each concern has its own slot; concurrent
// operations that write the same slot race and the last write wins.
type Service struct {
	api  API
	auth Authenticator
	now  func() time.Time
	log  zerolog.Logger

	balance       *observable.Slot[*domain.WalletBalance]
	transactions  *observable.Slot[[]domain.Transaction]
	recent        *observable.Slot[[]domain.Transaction]
	authenticated *observable.Slot[bool]
	paymentResult *observable.Slot[*domain.PaymentResult]
	loading       *observable.Slot[bool]
	errMsg        *observable.Slot[string]

	inflightMu sync.Mutex
	inflight   int
}

// NewService creates a Service with empty slots. A session that expires
// because its refresh failed resets the slots as a logout does.
func NewService(api API, auth Authenticator, log zerolog.Logger) *Service {
	s := &Service{
		api:           api,
		auth:          auth,
		now:           time.Now,
		log:           log.With().Str("component", "wallet").Logger(),
		balance:       observable.NewSlot[*domain.WalletBalance](nil),
		transactions:  observable.NewSlot[[]domain.Transaction](nil),
		recent:        observable.NewSlot[[]domain.Transaction](nil),
		authenticated: observable.NewSlot(false),
		paymentResult: observable.NewSlot[*domain.PaymentResult](nil),
		loading:       observable.NewSlot(false),
		errMsg:        observable.NewSlot(""),
	}
	api.OnSessionExpired(s.OnLogout)
	return s
}

// Slot accessors.
func (s *Service) Balance() *observable.Slot[*domain.WalletBalance]           { return s.balance }
func (s *Service) Transactions() *observable.Slot[[]domain.Transaction]       { return s.transactions }
func (s *Service) RecentTransactions() *observable.Slot[[]domain.Transaction] { return s.recent }
func (s *Service) Authenticated() *observable.Slot[bool]                      { return s.authenticated }
func (s *Service) PaymentResult() *observable.Slot[*domain.PaymentResult]     { return s.paymentResult }
func (s *Service) Loading() *observable.Slot[bool]                            { return s.loading }
func (s *Service) Error() *observable.Slot[string]                            { return s.errMsg }

// Start publishes the authentication flag and, when authenticated, loads the
// balance and the recent transactions concurrently.
func (s *Service) Start(ctx context.Context) error {
	authed := s.auth.IsAuthenticated(ctx)
	s.authenticated.Set(authed)
	if !authed {
		return nil
	}
	return s.refreshOverview(ctx)
}

func (s *Service) refreshOverview(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return asError(s.RefreshBalance(ctx)) })
	g.Go(func() error {
		return asError(s.LoadRecentTransactions(ctx, RecentLimit).Err())
	})
	return g.Wait()
}

// RefreshBalance replaces the balance slot with a fresh snapshot.
func (s *Service) RefreshBalance(ctx context.Context) *apiclient.Error {
	defer s.track()()

	res := s.api.GetBalance(ctx)
	if !res.Ok() {
		s.fail(res.Err())
		return res.Err()
	}
	b := res.Value()
	s.balance.Set(&b)
	return nil
}

// CurrentBalance returns the cached balance, fetching it when none is held.
func (s *Service) CurrentBalance(ctx context.Context) apiclient.Result[domain.WalletBalance] {
	if b := s.balance.Get(); b != nil {
		return apiclient.Success(*b)
	}
	if err := s.RefreshBalance(ctx); err != nil {
		return apiclient.Failure[domain.WalletBalance](err)
	}
	return apiclient.Success(*s.balance.Get())
}

// SendPayment transfers amount to recipientPhone. Input is validated before
// any network call. On success the balance and recent list are reloaded.
func (s *Service) SendPayment(ctx context.Context, amount decimal.Decimal, recipientPhone, description, pin string) *domain.PaymentResult {
	recipientPhone = strings.TrimSpace(recipientPhone)
	switch {
	case !amount.IsPositive():
		return s.publishPayment(domain.PaymentFailed(MsgAmountNotPositive, ""))
	case recipientPhone == "":
		return s.publishPayment(domain.PaymentFailed(MsgPhoneRequired, ""))
	}
	if strings.TrimSpace(description) == "" {
		description = domain.DefaultPaymentDescription
	}

	res := s.withLoading(func() apiclient.Result[domain.Transaction] {
		return s.api.SendPayment(ctx, domain.SendPaymentRequest{
			Amount:         amount,
			RecipientPhone: recipientPhone,
			Description:    description,
			PIN:            pin,
		})
	})
	return s.settle(ctx, res)
}

// RequestPayment creates a shareable payment link valid for a day.
func (s *Service) RequestPayment(ctx context.Context, amount decimal.Decimal, description string) apiclient.Result[domain.PaymentLink] {
	if !amount.IsPositive() {
		return apiclient.Failure[domain.PaymentLink](s.validation(MsgAmountNotPositive))
	}
	defer s.track()()

	res := s.api.RequestPayment(ctx, domain.RequestPaymentRequest{
		Amount:         amount,
		Description:    strings.TrimSpace(description),
		ExpiresInHours: PaymentLinkHours,
	})
	if !res.Ok() {
		s.fail(res.Err())
	}
	return res
}

// GenerateReceiveQR creates a QR code others can scan to pay this wallet.
// A nil amount leaves the amount to the payer.
func (s *Service) GenerateReceiveQR(ctx context.Context, amount *decimal.Decimal, description string) apiclient.Result[domain.QRCodeResponse] {
	if amount != nil && !amount.IsPositive() {
		return apiclient.Failure[domain.QRCodeResponse](s.validation(MsgAmountNotPositive))
	}
	defer s.track()()

	res := s.api.GenerateQR(ctx, amount, strings.TrimSpace(description))
	if !res.Ok() {
		s.fail(res.Err())
	}
	return res
}

// ProcessQRPayment pays a scanned QR payload. The payload is decoded and
// checked locally first; malformed, expired or non-payment codes never reach
// the network.
func (s *Service) ProcessQRPayment(ctx context.Context, qrData, pin string) *domain.PaymentResult {
	if strings.TrimSpace(pin) == "" {
		return s.publishPayment(domain.PaymentFailed(MsgPINRequired, ""))
	}

	data, err := domain.ParseQRPayload(qrData)
	if err == nil {
		err = data.ValidateForPayment(s.now())
	}
	if err != nil {
		return s.publishPayment(domain.PaymentFailed(qrErrorMessage(err), ""))
	}

	res := s.withLoading(func() apiclient.Result[domain.Transaction] {
		return s.api.ProcessQR(ctx, strings.TrimSpace(qrData), pin)
	})
	return s.settle(ctx, res)
}

func qrErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrQRExpired):
		return "QR code has expired"
	case errors.Is(err, domain.ErrQRMissingPaymentID):
		return "Invalid QR code: missing payment ID"
	case errors.Is(err, domain.ErrQRNotPayable):
		return "This QR code cannot be paid"
	default:
		return "Invalid QR code"
	}
}

// LoadTransactionHistory loads one page of history. Page 1 replaces the
// transactions slot; later pages are appended to it.
func (s *Service) LoadTransactionHistory(ctx context.Context, page, limit int) apiclient.Result[domain.TransactionPage] {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	defer s.track()()

	res := s.api.ListTransactions(ctx, page, limit)
	if !res.Ok() {
		s.fail(res.Err())
		return res
	}

	items := res.Value().Transactions
	if page == 1 {
		s.transactions.Set(items)
	} else {
		s.transactions.Update(func(cur []domain.Transaction) []domain.Transaction {
			merged := make([]domain.Transaction, 0, len(cur)+len(items))
			return append(append(merged, cur...), items...)
		})
	}
	return res
}

// LoadRecentTransactions replaces the recent transactions slot with the
// newest limit entries. It shares no state with LoadTransactionHistory.
func (s *Service) LoadRecentTransactions(ctx context.Context, limit int) apiclient.Result[domain.TransactionPage] {
	if limit <= 0 {
		limit = RecentLimit
	}
	defer s.track()()

	res := s.api.ListTransactions(ctx, 1, limit)
	if !res.Ok() {
		s.fail(res.Err())
		return res
	}
	s.recent.Set(res.Value().Transactions)
	return res
}

// TransactionDetail fetches a single transaction.
func (s *Service) TransactionDetail(ctx context.Context, id string) apiclient.Result[domain.Transaction] {
	id = strings.TrimSpace(id)
	if id == "" {
		return apiclient.Failure[domain.Transaction](s.validation(MsgTransactionID))
	}
	defer s.track()()

	res := s.api.GetTransaction(ctx, id)
	if !res.Ok() {
		s.fail(res.Err())
	}
	return res
}

// ClearError empties the error slot.
func (s *Service) ClearError() { s.errMsg.Set("") }

// ClearPaymentResult empties the payment result slot.
func (s *Service) ClearPaymentResult() { s.paymentResult.Set(nil) }

// OnLogout resets every slot.
func (s *Service) OnLogout() {
	s.balance.Set(nil)
	s.transactions.Set(nil)
	s.recent.Set(nil)
	s.authenticated.Set(false)
	s.paymentResult.Set(nil)
	s.errMsg.Set("")
}

func (s *Service) settle(ctx context.Context, res apiclient.Result[domain.Transaction]) *domain.PaymentResult {
	if !res.Ok() {
		s.fail(res.Err())
		return s.publishPayment(domain.PaymentFailed(res.Err().Message, res.Err().Code))
	}

	tx := res.Value()
	result := s.publishPayment(domain.PaymentSucceeded(&tx))
	if err := s.refreshOverview(ctx); err != nil {
		s.log.Debug().Err(err).Msg("reload after payment failed")
	}
	return result
}

func (s *Service) publishPayment(r *domain.PaymentResult) *domain.PaymentResult {
	s.paymentResult.Set(r)
	if !r.Success {
		s.errMsg.Set(r.ErrorMessage)
	}
	return r
}

func (s *Service) validation(msg string) *apiclient.Error {
	err := apiclient.ValidationError(msg)
	s.errMsg.Set(msg)
	return err
}

func (s *Service) fail(err *apiclient.Error) {
	s.log.Debug().Str("kind", string(err.Kind)).Str("code", err.Code).Msg(err.Message)
	s.errMsg.Set(err.Message)
}

func (s *Service) withLoading(fn func() apiclient.Result[domain.Transaction]) apiclient.Result[domain.Transaction] {
	defer s.track()()
	return fn()
}

// track raises the loading flag until the returned func is called. The flag
// stays up while any operation is in flight.
func (s *Service) track() func() {
	s.inflightMu.Lock()
	s.inflight++
	s.loading.Set(true)
	s.inflightMu.Unlock()

	return func() {
		s.inflightMu.Lock()
		s.inflight--
		if s.inflight == 0 {
			s.loading.Set(false)
		}
		s.inflightMu.Unlock()
	}
}

// asError avoids wrapping a nil *apiclient.Error in a non-nil error.
func asError(err *apiclient.Error) error {
	if err == nil {
		return nil
	}
	return err
}
