package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/access"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/services"
	"github.com/gin-gonic/gin"
)

// Signature headers checked in order; the first non-empty one is used.
var signatureHeaders = []string{"X-Razorpay-Signature", "X-Webhook-Signature"}

// maxWebhookBytes bounds a webhook body.
const maxWebhookBytes = 1 << 20

func (h *handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	u, err := h.svc.Users.Register(c.Request.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUser(u))
}

func (h *handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	t, err := h.svc.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTokens(t))
}

func (h *handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refresh_token is required")
		return
	}
	t, err := h.svc.Users.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTokens(t))
}

func (h *handler) listPlans(c *gin.Context) {
	plans, err := h.svc.Storage.ListPlans(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlan(p))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) upsertPlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid plan")
		return
	}
	plan := &models.StoragePlan{
		ID:       c.Param("planID"),
		Name:     req.Name,
		Bytes:    req.Bytes,
		Price:    req.Price,
		Currency: req.Currency,
		Active:   req.Active == nil || *req.Active,
	}
	if err := h.svc.Storage.UpsertPlan(c.Request.Context(), principal(c), plan); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPlan(plan))
}

func (h *handler) listSubscriptions(c *gin.Context) {
	subs, err := h.svc.Storage.ListSubscriptions(c.Request.Context(), principal(c), owner(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]subscriptionResponse, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubscription(s))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) purchaseStorage(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "plan_id is required")
		return
	}
	res, err := h.svc.Storage.PurchaseStorage(c.Request.Context(), principal(c), owner(c), req.PlanID, req.TotalBytes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, purchaseResponse{
		Amount:       money(res.Amount),
		Balance:      money(res.Wallet.Balance),
		Subscription: toSubscription(res.Subscription),
	})
}

func (h *handler) listFiles(c *gin.Context) {
	files, err := h.svc.Files.ListFiles(c.Request.Context(), principal(c), owner(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]fileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, toFile(f))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) uploadFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(c, "upload exceeds size limit")
			return
		}
		badRequest(c, "multipart field \"file\" is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()

	meta := services.FileMeta{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type")}
	if name := c.PostForm("name"); name != "" {
		meta.Name = name
	}
	res, err := h.svc.Files.UploadFile(c.Request.Context(), principal(c), owner(c), meta, fh.Size, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, uploadResponse{File: toFile(res.File), Subscription: toSubscription(res.Subscription)})
}

func (h *handler) deleteFile(c *gin.Context) {
	if err := h.svc.Files.DeleteFile(c.Request.Context(), principal(c), c.Param("fileID")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) downloadFile(c *gin.Context) {
	url, err := h.svc.Files.DownloadURL(c.Request.Context(), principal(c), c.Param("fileID"))
	if err != nil {
		writeError(c, err)
		return
	}
	if c.Query("redirect") == "1" {
		c.Redirect(http.StatusTemporaryRedirect, url)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *handler) getWallet(c *gin.Context) {
	v, err := h.svc.Wallets.GetWallet(c.Request.Context(), principal(c), owner(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toWallet(v.Wallet, v.Entries))
}

func (h *handler) fundWallet(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid amount")
		return
	}
	res, err := h.svc.Wallets.FundWallet(c.Request.Context(), principal(c), owner(c), req.Amount, req.Currency)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toPayment(res.Transaction))
}

func (h *handler) confirmFunding(c *gin.Context) {
	txn, err := h.svc.Wallets.ConfirmFunding(c.Request.Context(), c.Param("reference"))
	if err != nil {
		writeError(c, err)
		return
	}
	if p := principal(c); txn.UserID != p.UserID && !p.IsAdmin() {
		writeError(c, common.NotFound("transaction not found"))
		return
	}
	c.JSON(http.StatusOK, toPayment(txn))
}

func (h *handler) withdraw(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "amount, account and bank_code are required")
		return
	}
	res, err := h.svc.Wallets.WithdrawFromWallet(c.Request.Context(), principal(c), owner(c), req.Amount, req.Account, req.BankCode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, withdrawalResponse{
		Reference: res.Reference,
		Entry:     toEntry(res.Entry),
		Outflow:   toOutflow(res.Outflow),
	})
}

func (h *handler) recordPayout(c *gin.Context) {
	var req payoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "amount, account and bank_code are required")
		return
	}
	out, err := h.svc.Payouts.RecordPayout(c.Request.Context(), principal(c), req.Amount, req.Account, req.BankCode, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toOutflow(out))
}

func (h *handler) financeSummary(c *gin.Context) {
	s, err := h.svc.Finance.Summary(c.Request.Context(), principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSummary(s))
}

func (h *handler) financeRefresh(c *gin.Context) {
	if err := access.Authorize(principal(c), access.FinanceRead); err != nil {
		writeError(c, err)
		return
	}
	s, err := h.svc.Finance.Refresh(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSummary(s))
}

func (h *handler) chargeWebhook(c *gin.Context) {
	h.webhook(c, h.svc.Wallets.HandleChargeWebhook)
}

func (h *handler) transferWebhook(c *gin.Context) {
	h.webhook(c, h.svc.Payouts.HandleTransferWebhook)
}

func (h *handler) webhook(c *gin.Context, handle func(ctx context.Context, body []byte, signature string) error) {
	body, err := readBody(c)
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}
	if err := handle(c.Request.Context(), body, signature(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func signature(c *gin.Context) string {
	for _, name := range signatureHeaders {
		if v := strings.TrimSpace(c.GetHeader(name)); v != "" {
			return v
		}
	}
	return ""
}

func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
}
