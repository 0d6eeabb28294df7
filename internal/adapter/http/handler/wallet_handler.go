package handler

import (
	"strings"

	"healthpay-wallet/internal/adapter/http/dto"
	"healthpay-wallet/internal/core/domain"
	"healthpay-wallet/internal/core/ports"
	"healthpay-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client-chosen key of a payment call.
const HeaderIdempotencyKey = "Idempotency-Key"

// WalletHandler handles wallet and QR endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	balance, err := h.walletSvc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, balance)
}

// Send handles POST /api/v1/wallet/send.
func (h *WalletHandler) Send(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.SendPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	txn, err := h.walletSvc.Send(c.Request.Context(), ports.SendRequest{
		UserID:         userID,
		IdempotencyKey: idempotencyKey(c),
		Amount:         req.Amount,
		RecipientPhone: req.RecipientPhone,
		Description:    req.Description,
		PIN:            req.PIN,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, txn)
}

// RequestPayment handles POST /api/v1/wallet/request.
func (h *WalletHandler) RequestPayment(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.RequestPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	link, err := h.walletSvc.RequestPayment(c.Request.Context(), userID, domain.RequestPaymentRequest{
		Amount:         req.Amount,
		Description:    req.Description,
		ExpiresInHours: req.ExpiresInHours,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, link)
}

// ListTransactions handles GET /api/v1/wallet/transactions?page=&limit=.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var q dto.ListTransactionsQuery
	if !bindQuery(c, &q) {
		return
	}

	page, err := h.walletSvc.ListTransactions(c.Request.Context(), userID, q.Page, q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, page)
}

// GetTransaction handles GET /api/v1/wallet/transactions/:id.
func (h *WalletHandler) GetTransaction(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	txn, err := h.walletSvc.GetTransaction(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, txn)
}

// GenerateQR handles POST /api/v1/qr/generate.
func (h *WalletHandler) GenerateQR(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.GenerateQRRequest
	if !bindJSON(c, &req) {
		return
	}

	qr, err := h.walletSvc.GenerateQR(c.Request.Context(), userID, domain.GenerateQRRequest{
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, qr)
}

// ProcessQR handles POST /api/v1/qr/process.
func (h *WalletHandler) ProcessQR(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.ProcessQRRequest
	if !bindJSON(c, &req) {
		return
	}

	txn, err := h.walletSvc.ProcessQR(c.Request.Context(), ports.ProcessQRRequest{
		UserID:         userID,
		IdempotencyKey: idempotencyKey(c),
		QRData:         req.QRData,
		PIN:            req.PIN,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, txn)
}

func idempotencyKey(c *gin.Context) string {
	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if len(key) > 128 {
		return ""
	}
	return key
}
