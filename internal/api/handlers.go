package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fdyytu1/store-dc/internal/model"
)

type registerRequest struct {
	DiscordID string `json:"discord_id"`
	GrowID    string `json:"grow_id"`
}

type purchaseRequest struct {
	BuyerID     string `json:"buyer_id"`
	ProductCode string `json:"product_code"`
	Quantity    int    `json:"quantity"`
}

type amountRequest struct {
	UserID string `json:"user_id"`
	WL     int64  `json:"wl"`
	DL     int64  `json:"dl"`
	BGL    int64  `json:"bgl"`
}

type maintenanceRequest struct {
	AdminID string `json:"admin_id"`
	Enabled bool   `json:"enabled"`
}

type adminBalanceRequest struct {
	AdminID string `json:"admin_id"`
	GrowID  string `json:"grow_id"`
	Action  string `json:"action"` // "add" or "remove"
	WL      int64  `json:"wl"`
	DL      int64  `json:"dl"`
	BGL     int64  `json:"bgl"`
}

type identityResponse struct {
	DiscordID string    `json:"discord_id"`
	GrowID    string    `json:"grow_id"`
	CreatedAt time.Time `json:"created_at"`
}

type balanceResponse struct {
	WL      int64  `json:"wl"`
	DL      int64  `json:"dl"`
	BGL     int64  `json:"bgl"`
	TotalWL int64  `json:"total_wl"`
	Display string `json:"display"`
}

type purchaseResponse struct {
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	TotalPrice  int64           `json:"total_price"`
	Contents    []string        `json:"contents"`
	NewBalance  balanceResponse `json:"new_balance"`
}

type withdrawalResponse struct {
	TotalWithdrawn int64           `json:"total_withdrawn"`
	NewBalance     balanceResponse `json:"new_balance"`
}

type depositResponse struct {
	TotalDeposited int64           `json:"total_deposited"`
	NewBalance     balanceResponse `json:"new_balance"`
}

type productResponse struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	StockCount int    `json:"stock_count"`
}

type historyEntryResponse struct {
	Type          string    `json:"type"`
	Details       string    `json:"details"`
	Change        int64     `json:"change"`
	AmountDisplay string    `json:"amount_display"`
	ProductName   string    `json:"product_name,omitempty"`
	NewBalance    int64     `json:"new_balance"`
	CreatedAt     time.Time `json:"created_at"`
}

type historyResponse struct {
	Entries     []historyEntryResponse `json:"entries"`
	TotalCount  int                    `json:"total_count"`
	CurrentPage int                    `json:"current_page"`
	TotalPages  int                    `json:"total_pages"`
	HasMore     bool                   `json:"has_more"`
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	var req registerRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.DiscordID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	identity, err := s.accounts.Register(r.Context(), req.DiscordID, req.GrowID)
	if err != nil {
		s.writeServiceError(w, "register", err)
		return
	}

	writeJSON(w, http.StatusCreated, toIdentityResponse(identity))
}

func (s *Server) handleUserSubresource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	discordID := parts[0]
	switch parts[1] {
	case "balance":
		s.handleGetBalance(w, r, discordID)
	case "transactions":
		s.handleGetHistory(w, r, discordID)
	default:
		writeError(w, http.StatusNotFound, "not_found")
	}
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request, discordID string) {
	identity, err := s.accounts.GetIdentity(r.Context(), discordID)
	if err != nil {
		s.writeServiceError(w, "get_balance", err)
		return
	}

	balance, err := s.accounts.GetBalance(r.Context(), identity.GrowID)
	if err != nil {
		s.writeServiceError(w, "get_balance", err)
		return
	}

	writeJSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request, discordID string) {
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	result, err := s.transactions.GetTransactionHistory(r.Context(), discordID, limit, offset)
	if err != nil {
		s.writeServiceError(w, "get_history", err)
		return
	}

	resp := historyResponse{
		Entries:     make([]historyEntryResponse, 0, len(result.Entries)),
		TotalCount:  result.TotalCount,
		CurrentPage: result.CurrentPage,
		TotalPages:  result.TotalPages,
		HasMore:     result.HasMore,
	}
	for _, e := range result.Entries {
		resp.Entries = append(resp.Entries, historyEntryResponse{
			Type:          e.Record.Type,
			Details:       e.Record.Details,
			Change:        e.Change,
			AmountDisplay: e.AmountDisplay,
			ProductName:   e.ProductName,
			NewBalance:    e.NewBalance.TotalWL(),
			CreatedAt:     e.Record.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	listings, err := s.products.ListProducts(r.Context())
	if err != nil {
		s.writeServiceError(w, "list_products", err)
		return
	}

	resp := make([]productResponse, 0, len(listings))
	for _, l := range listings {
		resp = append(resp, productResponse{
			Code:       l.Product.Code,
			Name:       l.Product.Name,
			Price:      l.Product.Price,
			StockCount: l.StockCount,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	var req purchaseRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.BuyerID) == "" || strings.TrimSpace(req.ProductCode) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := s.transactions.ProcessPurchase(r.Context(), req.BuyerID, req.ProductCode, req.Quantity)
	if err != nil {
		s.writeServiceError(w, "purchase", err)
		return
	}

	writeJSON(w, http.StatusCreated, purchaseResponse{
		ProductCode: result.Product.Code,
		ProductName: result.Product.Name,
		Quantity:    result.Quantity,
		TotalPrice:  result.TotalPrice,
		Contents:    result.Contents,
		NewBalance:  toBalanceResponse(result.NewBalance),
	})
}

func (s *Server) handleWithdrawals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	var req amountRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := s.transactions.ProcessWithdrawal(r.Context(), req.UserID, req.WL, req.DL, req.BGL)
	if err != nil {
		s.writeServiceError(w, "withdrawal", err)
		return
	}

	writeJSON(w, http.StatusOK, withdrawalResponse{
		TotalWithdrawn: result.TotalWithdrawn,
		NewBalance:     toBalanceResponse(result.NewBalance),
	})
}

func (s *Server) handleDeposits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	var req amountRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := s.transactions.ProcessDeposit(r.Context(), req.UserID, req.WL, req.DL, req.BGL)
	if err != nil {
		s.writeServiceError(w, "deposit", err)
		return
	}

	writeJSON(w, http.StatusOK, depositResponse{
		TotalDeposited: result.TotalDeposited,
		NewBalance:     toBalanceResponse(result.NewBalance),
	})
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	var req maintenanceRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if err := s.admin.SetMaintenanceMode(r.Context(), req.AdminID, req.Enabled); err != nil {
		s.writeServiceError(w, "maintenance", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) handleAdminBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	var req adminBalanceRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	var (
		balance model.Balance
		err     error
	)
	switch req.Action {
	case "add":
		balance, err = s.admin.AddBalance(r.Context(), req.AdminID, req.GrowID, req.WL, req.DL, req.BGL)
	case "remove":
		balance, err = s.admin.RemoveBalance(r.Context(), req.AdminID, req.GrowID, req.WL, req.DL, req.BGL)
	default:
		writeError(w, http.StatusBadRequest, "invalid_action")
		return
	}
	if err != nil {
		s.writeServiceError(w, "admin_balance", err)
		return
	}

	writeJSON(w, http.StatusOK, toBalanceResponse(balance))
}

type createProductRequest struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type addStockRequest struct {
	ProductCode string   `json:"product_code"`
	Contents    []string `json:"contents"`
	AddedBy     string   `json:"added_by"`
}

type deleteStockRequest struct {
	ProductCode string  `json:"product_code"`
	ItemIDs     []int64 `json:"item_ids"`
}

type addStockResponse struct {
	ItemIDs []int64 `json:"item_ids"`
}

func (s *Server) handleAdminProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	var req createProductRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	product, err := s.products.CreateProduct(r.Context(), req.Code, req.Name, req.Price)
	if err != nil {
		s.writeServiceError(w, "create_product", err)
		return
	}

	writeJSON(w, http.StatusCreated, productResponse{
		Code:  product.Code,
		Name:  product.Name,
		Price: product.Price,
	})
}

func (s *Server) handleAdminStock(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleAddStock(w, r)
	case http.MethodDelete:
		s.handleDeleteStock(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	}
}

func (s *Server) handleAddStock(w http.ResponseWriter, r *http.Request) {
	var req addStockRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.ProductCode) == "" || len(req.Contents) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	ids := make([]int64, 0, len(req.Contents))
	for _, content := range req.Contents {
		item, err := s.products.AddStock(r.Context(), req.ProductCode, content, req.AddedBy)
		if err != nil {
			s.writeServiceError(w, "add_stock", err)
			return
		}
		ids = append(ids, item.ID)
	}

	writeJSON(w, http.StatusCreated, addStockResponse{ItemIDs: ids})
}

func (s *Server) handleDeleteStock(w http.ResponseWriter, r *http.Request) {
	var req deleteStockRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.ProductCode) == "" || len(req.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if err := s.products.DeleteStock(r.Context(), req.ProductCode, req.ItemIDs); err != nil {
		s.writeServiceError(w, "delete_stock", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(req.ItemIDs)})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func toIdentityResponse(id *model.Identity) identityResponse {
	return identityResponse{
		DiscordID: id.DiscordID,
		GrowID:    id.GrowID,
		CreatedAt: id.CreatedAt,
	}
}

func toBalanceResponse(b model.Balance) balanceResponse {
	return balanceResponse{
		WL:      b.WL,
		DL:      b.DL,
		BGL:     b.BGL,
		TotalWL: b.TotalWL(),
		Display: b.Format(),
	}
}
