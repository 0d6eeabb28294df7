package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"healthpay-wallet/internal/adapter/apiclient"
	"healthpay-wallet/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves canned results and counts calls per operation.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	balance apiclient.Result[domain.WalletBalance]
	send    apiclient.Result[domain.Transaction]
	link    apiclient.Result[domain.PaymentLink]
	pages   map[int]apiclient.Result[domain.TransactionPage]
	tx      apiclient.Result[domain.Transaction]
	qr      apiclient.Result[domain.QRCodeResponse]
	process apiclient.Result[domain.Transaction]

	onExpired []func()

	lastSend    domain.SendPaymentRequest
	lastRequest domain.RequestPaymentRequest
	lastQRData  string
	lastLimit   int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls: map[string]int{},
		balance: apiclient.Success(domain.WalletBalance{
			Available: decimal.RequireFromString("100"),
			Currency:  "EGP",
		}),
		pages: map[int]apiclient.Result[domain.TransactionPage]{},
	}
}

func (f *fakeAPI) OnSessionExpired(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onExpired = append(f.onExpired, fn)
}

// expire runs the registered callbacks the way the client does after a
// failed refresh.
func (f *fakeAPI) expire() {
	f.mu.Lock()
	fns := append([]func(){}, f.onExpired...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (f *fakeAPI) hit(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeAPI) GetBalance(context.Context) apiclient.Result[domain.WalletBalance] {
	f.hit("balance")
	return f.balance
}

func (f *fakeAPI) SendPayment(_ context.Context, req domain.SendPaymentRequest) apiclient.Result[domain.Transaction] {
	f.hit("send")
	f.mu.Lock()
	f.lastSend = req
	f.mu.Unlock()
	return f.send
}

func (f *fakeAPI) RequestPayment(_ context.Context, req domain.RequestPaymentRequest) apiclient.Result[domain.PaymentLink] {
	f.hit("request")
	f.lastRequest = req
	return f.link
}

func (f *fakeAPI) ListTransactions(_ context.Context, page, limit int) apiclient.Result[domain.TransactionPage] {
	f.hit("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if res, ok := f.pages[page]; ok {
		return res
	}
	return apiclient.Success(domain.TransactionPage{Page: page})
}

func (f *fakeAPI) GetTransaction(context.Context, string) apiclient.Result[domain.Transaction] {
	f.hit("tx")
	return f.tx
}

func (f *fakeAPI) GenerateQR(context.Context, *decimal.Decimal, string) apiclient.Result[domain.QRCodeResponse] {
	f.hit("qr")
	return f.qr
}

func (f *fakeAPI) ProcessQR(_ context.Context, qrData, _ string) apiclient.Result[domain.Transaction] {
	f.hit("process")
	f.mu.Lock()
	f.lastQRData = qrData
	f.mu.Unlock()
	return f.process
}

type staticAuth bool

func (a staticAuth) IsAuthenticated(context.Context) bool { return bool(a) }

func newTestService(api *fakeAPI) *Service {
	return NewService(api, staticAuth(true), zerolog.Nop())
}

func page(ids ...string) apiclient.Result[domain.TransactionPage] {
	p := domain.TransactionPage{}
	for _, id := range ids {
		p.Transactions = append(p.Transactions, domain.Transaction{ID: id})
	}
	return apiclient.Success(p)
}

func TestSendPayment_RejectsNonPositiveAmountsLocally(t *testing.T) {
	for _, amount := range []string{"0", "-5", "0.00"} {
		t.Run(amount, func(t *testing.T) {
			api := newFakeAPI()
			svc := newTestService(api)

			res := svc.SendPayment(context.Background(), decimal.RequireFromString(amount), "+201112223334", "", "1234")
			assert.False(t, res.Success)
			assert.Equal(t, MsgAmountNotPositive, res.ErrorMessage)
			assert.Zero(t, api.total(), "no network call expected")
			assert.Equal(t, MsgAmountNotPositive, svc.Error().Get())
			assert.Same(t, res, svc.PaymentResult().Get())
		})
	}
}

func TestSendPayment_RequiresPhone(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(api)

	res := svc.SendPayment(context.Background(), decimal.NewFromInt(10), "   ", "", "")
	assert.False(t, res.Success)
	assert.Equal(t, MsgPhoneRequired, res.ErrorMessage)
	assert.Zero(t, api.total())
}

func TestSendPayment_Success(t *testing.T) {
	api := newFakeAPI()
	api.send = apiclient.Success(domain.Transaction{ID: "tx-1", Type: domain.TransactionTypeSent})
	api.pages[1] = page("tx-1", "tx-0")
	svc := newTestService(api)

	res := svc.SendPayment(context.Background(), decimal.RequireFromString("25.50"), " +201112223334 ", "", "1234")
	require.True(t, res.Success)
	assert.Equal(t, "tx-1", res.Transaction.ID)

	assert.Equal(t, domain.DefaultPaymentDescription, api.lastSend.Description)
	assert.Equal(t, "+201112223334", api.lastSend.RecipientPhone)
	assert.Equal(t, "1234", api.lastSend.PIN)

	assert.Equal(t, 1, api.count("balance"), "balance reloaded after payment")
	assert.Equal(t, 1, api.count("list"), "recent list reloaded after payment")
	assert.Equal(t, RecentLimit, api.lastLimit)
	assert.NotNil(t, svc.Balance().Get())
	assert.Len(t, svc.RecentTransactions().Get(), 2)
	assert.False(t, svc.Loading().Get())
	assert.Empty(t, svc.Error().Get())
}

func TestSendPayment_ServerErrorSurfacedVerbatim(t *testing.T) {
	api := newFakeAPI()
	api.send = apiclient.Failure[domain.Transaction](&apiclient.Error{
		Kind: apiclient.KindServer, Message: "Insufficient funds", Code: "PAY_001", Status: 402,
	})
	svc := newTestService(api)

	res := svc.SendPayment(context.Background(), decimal.NewFromInt(5000), "+201112223334", "rent", "1234")
	assert.False(t, res.Success)
	assert.Equal(t, "Insufficient funds", res.ErrorMessage)
	assert.Equal(t, "PAY_001", res.ErrorCode)
	assert.Equal(t, "Insufficient funds", svc.Error().Get())
	assert.Equal(t, 1, api.count("send"))
	assert.Zero(t, api.count("balance"), "no reload after a failed payment")
}

func TestProcessQRPayment_LocalRejections(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		payload string
		pin     string
		wantMsg string
	}{
		{"missing payment id", "healthpay://pay?amount=50&phone=%2B201112223334", "1234", "Invalid QR code: missing payment ID"},
		{"expired", "healthpay://pay?paymentId=HP0123456789ABCDEF&expires=2026-04-01T11:00:00Z", "1234", "QR code has expired"},
		{"wallet code", "healthpay://wallet?paymentId=HP0123456789ABCDEF", "1234", "This QR code cannot be paid"},
		{"unknown scheme", "otherpay://pay?paymentId=HP0123456789ABCDEF", "1234", "Invalid QR code"},
		{"garbage", "hello", "1234", "Invalid QR code"},
		{"empty pin", "HP0123456789ABCDEF", "", MsgPINRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			svc := newTestService(api)
			svc.now = func() time.Time { return now }

			res := svc.ProcessQRPayment(context.Background(), tt.payload, tt.pin)
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantMsg, res.ErrorMessage)
			assert.Zero(t, api.total(), "no network call expected")
		})
	}
}

func TestProcessQRPayment_Success(t *testing.T) {
	api := newFakeAPI()
	api.process = apiclient.Success(domain.Transaction{ID: "tx-qr", Metadata: map[string]string{"channel": "qr"}})
	svc := newTestService(api)

	payload := domain.BuildQRPayload(domain.QRCodeData{Type: domain.QRTypePayment, PaymentID: "HP0123456789ABCDEF"})
	res := svc.ProcessQRPayment(context.Background(), "  "+payload+"\n", "1234")
	require.True(t, res.Success)
	assert.Equal(t, "tx-qr", res.Transaction.ID)
	assert.Equal(t, payload, api.lastQRData)
	assert.Equal(t, 1, api.count("balance"))
}

func TestLoadTransactionHistory_PagesAppend(t *testing.T) {
	api := newFakeAPI()
	api.pages[1] = page("a", "b")
	api.pages[2] = page("c")
	svc := newTestService(api)
	ctx := context.Background()

	require.True(t, svc.LoadTransactionHistory(ctx, 1, 2).Ok())
	require.True(t, svc.LoadTransactionHistory(ctx, 2, 2).Ok())

	var ids []string
	for _, tx := range svc.Transactions().Get() {
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	require.True(t, svc.LoadTransactionHistory(ctx, 1, 2).Ok())
	assert.Len(t, svc.Transactions().Get(), 2, "page 1 replaces")
	assert.Nil(t, svc.RecentTransactions().Get(), "history does not touch the recent list")
}

func TestLoadTransactionHistory_Defaults(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(api)

	svc.LoadTransactionHistory(context.Background(), 0, 0)
	assert.Equal(t, DefaultPageSize, api.lastLimit)
}

func TestLoadRecentTransactions_Independent(t *testing.T) {
	api := newFakeAPI()
	api.pages[1] = page("r1", "r2", "r3")
	svc := newTestService(api)

	require.True(t, svc.LoadRecentTransactions(context.Background(), 3).Ok())
	assert.Len(t, svc.RecentTransactions().Get(), 3)
	assert.Nil(t, svc.Transactions().Get())
}

func TestLoadFailurePublishesError(t *testing.T) {
	api := newFakeAPI()
	api.pages[1] = apiclient.Failure[domain.TransactionPage](&apiclient.Error{Kind: apiclient.KindTransport, Message: apiclient.MsgNetworkError})
	svc := newTestService(api)
	svc.transactions.Set([]domain.Transaction{{ID: "kept"}})

	res := svc.LoadTransactionHistory(context.Background(), 1, 20)
	require.False(t, res.Ok())
	assert.Equal(t, apiclient.MsgNetworkError, svc.Error().Get())
	assert.Len(t, svc.Transactions().Get(), 1, "failed load keeps the old list")

	svc.ClearError()
	assert.Empty(t, svc.Error().Get())
}

func TestStart(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		api := newFakeAPI()
		svc := NewService(api, staticAuth(false), zerolog.Nop())

		require.NoError(t, svc.Start(context.Background()))
		assert.False(t, svc.Authenticated().Get())
		assert.Zero(t, api.total())
	})

	t.Run("authenticated", func(t *testing.T) {
		api := newFakeAPI()
		api.pages[1] = page("x")
		svc := newTestService(api)

		require.NoError(t, svc.Start(context.Background()))
		assert.True(t, svc.Authenticated().Get())
		assert.Equal(t, 1, api.count("balance"))
		assert.Equal(t, 1, api.count("list"))
		assert.Equal(t, RecentLimit, api.lastLimit)
		assert.Len(t, svc.RecentTransactions().Get(), 1)
	})

	t.Run("load failure", func(t *testing.T) {
		api := newFakeAPI()
		api.balance = apiclient.Failure[domain.WalletBalance](&apiclient.Error{Kind: apiclient.KindServer, Message: "Server error occurred"})
		svc := newTestService(api)

		err := svc.Start(context.Background())
		require.Error(t, err)
		assert.Equal(t, "Server error occurred", err.Error())
	})
}

func TestCurrentBalance_FetchesOnce(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(api)
	ctx := context.Background()

	first := svc.CurrentBalance(ctx)
	require.True(t, first.Ok())
	second := svc.CurrentBalance(ctx)
	require.True(t, second.Ok())

	assert.Equal(t, 1, api.count("balance"))
	assert.Equal(t, "100", second.Value().Available.String())
}

func TestRequestPayment(t *testing.T) {
	api := newFakeAPI()
	api.link = apiclient.Success(domain.PaymentLink{RequestID: "HPREQ", Link: "https://portal.beta.healthpay.tech/pay/HPREQ"})
	svc := newTestService(api)
	ctx := context.Background()

	bad := svc.RequestPayment(ctx, decimal.Zero, "")
	require.False(t, bad.Ok())
	assert.Equal(t, apiclient.KindValidation, bad.Err().Kind)
	assert.Zero(t, api.total())

	res := svc.RequestPayment(ctx, decimal.NewFromInt(40), " dinner ")
	require.True(t, res.Ok())
	assert.Equal(t, PaymentLinkHours, api.lastRequest.ExpiresInHours)
	assert.Equal(t, "dinner", api.lastRequest.Description)
}

func TestGenerateReceiveQR(t *testing.T) {
	api := newFakeAPI()
	api.qr = apiclient.Success(domain.QRCodeResponse{PaymentID: "HP0123456789ABCDEF"})
	svc := newTestService(api)
	ctx := context.Background()

	neg := decimal.NewFromInt(-1)
	bad := svc.GenerateReceiveQR(ctx, &neg, "")
	require.False(t, bad.Ok())
	assert.Zero(t, api.count("qr"))

	open := svc.GenerateReceiveQR(ctx, nil, "")
	require.True(t, open.Ok())
	assert.Equal(t, 1, api.count("qr"))
}

func TestTransactionDetail_RequiresID(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(api)

	res := svc.TransactionDetail(context.Background(), " ")
	require.False(t, res.Ok())
	assert.Equal(t, MsgTransactionID, res.Err().Message)
	assert.Zero(t, api.total())
}

func TestOnLogout_ResetsSlots(t *testing.T) {
	api := newFakeAPI()
	api.pages[1] = page("x")
	svc := newTestService(api)
	require.NoError(t, svc.Start(context.Background()))
	svc.SendPayment(context.Background(), decimal.Zero, "", "", "")

	svc.OnLogout()

	assert.Nil(t, svc.Balance().Get())
	assert.Nil(t, svc.RecentTransactions().Get())
	assert.Nil(t, svc.PaymentResult().Get())
	assert.False(t, svc.Authenticated().Get())
	assert.Empty(t, svc.Error().Get())
}

func TestSessionExpiry_ResetsSlots(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(api)
	require.NoError(t, svc.Start(context.Background()))
	require.True(t, svc.Authenticated().Get())
	require.NotNil(t, svc.Balance().Get())

	api.expire()

	assert.False(t, svc.Authenticated().Get())
	assert.Nil(t, svc.Balance().Get())
	assert.Nil(t, svc.RecentTransactions().Get())
}

func TestLoadingFlag(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(api)
	updates, cancel := svc.Loading().Subscribe()
	defer cancel()
	assert.False(t, <-updates)

	require.Nil(t, svc.RefreshBalance(context.Background()))
	assert.False(t, svc.Loading().Get())

	svc.ClearPaymentResult()
	assert.Nil(t, svc.PaymentResult().Get())
}
