package httpapi

import (
	"time"

	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/services"
	"github.com/shopspring/decimal"
)

// Money travels as a fixed two-decimal string so clients never parse
// floats.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type amountRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type withdrawRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Account  string          `json:"account" binding:"required"`
	BankCode string          `json:"bank_code" binding:"required"`
}

type payoutRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Account     string          `json:"account" binding:"required"`
	BankCode    string          `json:"bank_code" binding:"required"`
	Description string          `json:"description"`
}

type purchaseRequest struct {
	PlanID     string `json:"plan_id" binding:"required"`
	TotalBytes int64  `json:"total_bytes"`
}

type planRequest struct {
	Name     string          `json:"name" binding:"required"`
	Bytes    int64           `json:"bytes"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Active   *bool           `json:"active"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUser(u *models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func toTokens(t *services.TokenPair) tokenResponse {
	return tokenResponse{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
}

type walletResponse struct {
	ID       string          `json:"id"`
	UserID   string          `json:"user_id"`
	Balance  string          `json:"balance"`
	Currency string          `json:"currency"`
	Entries  []entryResponse `json:"entries,omitempty"`
}

type entryResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      string    `json:"amount"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Reference   string    `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toWallet(w *models.Wallet, entries []*models.WalletEntry) walletResponse {
	out := walletResponse{ID: w.ID, UserID: w.UserID, Balance: money(w.Balance), Currency: w.Currency}
	for _, e := range entries {
		out.Entries = append(out.Entries, toEntry(e))
	}
	return out
}

func toEntry(e *models.WalletEntry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		Type:        string(e.Type),
		Amount:      money(e.Amount),
		Status:      string(e.Status),
		Description: e.Description,
		Reference:   e.Reference,
		CreatedAt:   e.CreatedAt,
	}
}

type paymentResponse struct {
	Reference   string `json:"reference"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	PaymentLink string `json:"payment_link,omitempty"`
}

func toPayment(p *models.PaymentTransaction) paymentResponse {
	return paymentResponse{
		Reference:   p.Reference,
		Amount:      money(p.Amount),
		Currency:    p.Currency,
		Status:      string(p.Status),
		PaymentLink: p.PaymentLink,
	}
}

type outflowResponse struct {
	ID          string    `json:"id"`
	Reference   string    `json:"reference"`
	Amount      string    `json:"amount"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func toOutflow(o *models.OutflowAmount) outflowResponse {
	return outflowResponse{
		ID:          o.ID,
		Reference:   o.Reference,
		Amount:      money(o.Amount),
		Status:      string(o.Status),
		Description: o.Description,
		CreatedAt:   o.CreatedAt,
	}
}

type withdrawalResponse struct {
	Reference string          `json:"reference"`
	Entry     entryResponse   `json:"entry"`
	Outflow   outflowResponse `json:"outflow"`
}

type planResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Bytes    int64  `json:"bytes"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Active   bool   `json:"active"`
}

func toPlan(p *models.StoragePlan) planResponse {
	return planResponse{ID: p.ID, Name: p.Name, Bytes: p.Bytes, Price: money(p.Price), Currency: p.Currency, Active: p.Active}
}

type subscriptionResponse struct {
	ID           string `json:"id"`
	PlanID       string `json:"plan_id"`
	TotalStorage int64  `json:"total_storage"`
	UsedStorage  int64  `json:"used_storage"`
	Remaining    int64  `json:"remaining"`
	Status       string `json:"status"`
	AmountPaid   string `json:"amount_paid"`
}

func toSubscription(s *models.StoragePurchase) subscriptionResponse {
	return subscriptionResponse{
		ID:           s.ID,
		PlanID:       s.PlanID,
		TotalStorage: s.TotalStorage,
		UsedStorage:  s.UsedStorage,
		Remaining:    s.Remaining(),
		Status:       string(s.Status),
		AmountPaid:   money(s.AmountPaid),
	}
}

type purchaseResponse struct {
	Amount       string               `json:"amount"`
	Balance      string               `json:"balance"`
	Subscription subscriptionResponse `json:"subscription"`
}

type fileResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

func toFile(f *models.File) fileResponse {
	return fileResponse{ID: f.ID, Name: f.Name, ContentType: f.ContentType, Size: f.Size, CreatedAt: f.CreatedAt}
}

type uploadResponse struct {
	File         fileResponse         `json:"file"`
	Subscription subscriptionResponse `json:"subscription"`
}

type summaryResponse struct {
	TotalInflow  string    `json:"total_inflow"`
	TotalOutflow string    `json:"total_outflow"`
	NetBalance   string    `json:"net_balance"`
	LastUpdated  time.Time `json:"last_updated"`
}

func toSummary(s *models.FinancialSummary) summaryResponse {
	return summaryResponse{
		TotalInflow:  money(s.TotalInflow),
		TotalOutflow: money(s.TotalOutflow),
		NetBalance:   money(s.NetBalance),
		LastUpdated:  s.LastUpdated,
	}
}
