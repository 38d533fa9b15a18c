// Package api exposes the store over HTTP. Every endpoint sits behind
// bearer-token auth; responses are JSON with a stable error code
// vocabulary.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fdyytu1/store-dc/internal/model"
	"github.com/fdyytu1/store-dc/internal/service"
)

// Accounts is the identity/balance surface the server consumes.
type Accounts interface {
	Register(ctx context.Context, discordID, growID string) (*model.Identity, error)
	GetIdentity(ctx context.Context, discordID string) (*model.Identity, error)
	GetBalance(ctx context.Context, growID string) (model.Balance, error)
}

// Transactions is the coordinated-workflow surface the server consumes.
type Transactions interface {
	ProcessPurchase(ctx context.Context, buyerID, productCode string, quantity int) (*service.PurchaseResult, error)
	ProcessWithdrawal(ctx context.Context, userID string, wl, dl, bgl int64) (*service.WithdrawalResult, error)
	ProcessDeposit(ctx context.Context, userID string, wl, dl, bgl int64) (*service.DepositResult, error)
	GetTransactionHistory(ctx context.Context, userID string, limit, offset int) (*service.HistoryResult, error)
}

// Products is the catalog surface the server consumes.
type Products interface {
	ListProducts(ctx context.Context) ([]service.ProductListing, error)
	CreateProduct(ctx context.Context, code, name string, price int64) (*model.Product, error)
	AddStock(ctx context.Context, productCode, content, addedBy string) (*model.StockItem, error)
	DeleteStock(ctx context.Context, productCode string, itemIDs []int64) error
}

// Admin is the administrative surface the server consumes.
type Admin interface {
	SetMaintenanceMode(ctx context.Context, adminID string, enabled bool) error
	AddBalance(ctx context.Context, adminID, growID string, wl, dl, bgl int64) (model.Balance, error)
	RemoveBalance(ctx context.Context, adminID, growID string, wl, dl, bgl int64) (model.Balance, error)
}

// Pinger reports backing-store health. The database pool satisfies it.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

type Server struct {
	accounts     Accounts
	transactions Transactions
	products     Products
	admin        Admin
	health       Pinger
	authToken    string
	logger       zerolog.Logger
}

func NewServer(
	accounts Accounts,
	transactions Transactions,
	products Products,
	admin Admin,
	health Pinger,
	authToken string,
	logger zerolog.Logger,
) *Server {
	return &Server{
		accounts:     accounts,
		transactions: transactions,
		products:     products,
		admin:        admin,
		health:       health,
		authToken:    authToken,
		logger:       logger,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/users", s.authMiddleware(http.HandlerFunc(s.handleUsers)))
	mux.Handle("/v1/users/", s.authMiddleware(http.HandlerFunc(s.handleUserSubresource)))
	mux.Handle("/v1/products", s.authMiddleware(http.HandlerFunc(s.handleProducts)))
	mux.Handle("/v1/purchases", s.authMiddleware(http.HandlerFunc(s.handlePurchases)))
	mux.Handle("/v1/withdrawals", s.authMiddleware(http.HandlerFunc(s.handleWithdrawals)))
	mux.Handle("/v1/deposits", s.authMiddleware(http.HandlerFunc(s.handleDeposits)))
	mux.Handle("/v1/admin/maintenance", s.authMiddleware(http.HandlerFunc(s.handleMaintenance)))
	mux.Handle("/v1/admin/balances", s.authMiddleware(http.HandlerFunc(s.handleAdminBalances)))
	mux.Handle("/v1/admin/products", s.authMiddleware(http.HandlerFunc(s.handleAdminProducts)))
	mux.Handle("/v1/admin/stock", s.authMiddleware(http.HandlerFunc(s.handleAdminStock)))
	// Liveness for load balancers; deliberately unauthenticated.
	mux.Handle("/healthz", http.HandlerFunc(s.handleHealth))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.health.HealthCheck(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("health check failed")
		writeError(w, http.StatusServiceUnavailable, "unhealthy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		if !secureCompare(token, s.authToken) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
