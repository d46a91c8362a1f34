package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/domain"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/repository"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/service"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/httpmw"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CartHandler struct {
	service *service.CartService
	logger  *zap.Logger
}

func NewCartHandler(service *service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{service: service, logger: logger}
}

func (h *CartHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(httpmw.RequestIDMiddleware)
	r.Use(httpmw.CorrelationMiddleware)
	r.Use(httpmw.MockAuthMiddleware)

	r.Get("/cart", h.GetCart)
	r.Post("/cart/items", h.AddItem)
	r.Put("/cart/items/{productID}", h.UpdateQuantity)
	r.Delete("/cart/items/{productID}", h.RemoveItem)
	r.Delete("/cart", h.ClearCart)
	return r
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartSummaryDTO struct {
	UserID    string            `json:"user_id"`
	Items     []domain.CartItem `json:"items"`
	ItemCount int               `json:"item_count"`
	Subtotal  float64           `json:"subtotal"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toSummary(cart))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	if err := h.service.AddItem(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		h.respondServiceError(w, err)
		return
	}

	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toSummary(cart))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a positive integer")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	if err := h.service.UpdateQuantity(r.Context(), userID, productID, req.Quantity); err != nil {
		h.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a positive integer")
		return
	}

	if err := h.service.RemoveItem(r.Context(), userID, productID); err != nil {
		h.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	if err := h.service.ClearCart(r.Context(), userID); err != nil {
		h.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrCartNotFound), errors.Is(err, repository.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, service.ErrProductUnavailable):
		respondError(w, http.StatusConflict, "product_unavailable", err.Error())
	default:
		h.logger.Error("cart request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func toSummary(cart *domain.Cart) CartSummaryDTO {
	items := cart.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartSummaryDTO{
		UserID:    cart.UserID,
		Items:     items,
		ItemCount: cart.ItemCount(),
		Subtotal:  cart.Subtotal(),
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Details: details,
	})
}
