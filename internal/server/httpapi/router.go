// Package httpapi is the REST surface of the server: a thin gin layer that
// decodes requests, calls services and maps typed errors to statuses.
package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/campusvault/internal/logging"
	"github.com/dmitrijs2005/campusvault/internal/server/services"
	"github.com/gin-gonic/gin"
)

// Services are the operations the API exposes.
type Services struct {
	Users   *services.UserService
	Files   *services.FileService
	Storage *services.StorageService
	Wallets *services.WalletService
	Payouts *services.PayoutService
	Finance *services.FinanceService
}

type Options struct {
	// MaxUploadBytes caps a multipart upload request; zero means 1 GiB.
	MaxUploadBytes int64
}

type handler struct {
	svc  Services
	log  logging.Logger
	opts Options
}

// NewRouter builds the gin engine with all routes mounted under /api/v1.
func NewRouter(svc Services, log logging.Logger, opts Options) *gin.Engine {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 1 << 30
	}
	h := &handler{svc: svc, log: log.With("module", "httpapi"), opts: opts}

	r := gin.New()
	r.Use(requestID(), accessLog(h.log), recovery(h.log))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	v1 := r.Group("/api/v1")
	v1.POST("/auth/register", h.register)
	v1.POST("/auth/login", h.login)
	v1.POST("/auth/refresh", h.refresh)
	v1.GET("/plans", h.listPlans)

	// Webhooks authenticate by signature, not by bearer token.
	v1.POST("/webhooks/charge", h.chargeWebhook)
	v1.POST("/webhooks/transfer", h.transferWebhook)

	authed := v1.Group("", authRequired(svc.Users))
	authed.PUT("/plans/:planID", h.upsertPlan)

	user := authed.Group("/users/:userID")
	user.GET("/subscriptions", h.listSubscriptions)
	user.POST("/storage/purchase", h.purchaseStorage)
	user.GET("/files", h.listFiles)
	user.POST("/files", h.uploadFile)
	user.GET("/wallet", h.getWallet)
	user.POST("/wallet/fund", h.fundWallet)
	user.POST("/wallet/withdraw", h.withdraw)

	authed.DELETE("/files/:fileID", h.deleteFile)
	authed.GET("/files/:fileID/download", h.downloadFile)
	authed.POST("/fundings/:reference/confirm", h.confirmFunding)
	authed.POST("/payouts", h.recordPayout)
	authed.GET("/finance/summary", h.financeSummary)
	authed.POST("/finance/refresh", h.financeRefresh)

	return r
}

// owner resolves the :userID path segment; "me" is the caller.
func owner(c *gin.Context) string {
	id := c.Param("userID")
	if id == "me" {
		if p := principal(c); p != nil {
			return p.UserID
		}
	}
	return id
}
