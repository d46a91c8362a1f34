package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/catalog/domain"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/catalog/repository"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/catalog/service"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/httpmw"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ProductHandler struct {
	service *service.ProductService
	logger  *zap.Logger
}

func NewProductHandler(service *service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{service: service, logger: logger}
}

func (h *ProductHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(httpmw.RequestIDMiddleware)
	r.Use(httpmw.CorrelationMiddleware)

	r.Get("/products", h.ListProducts)
	r.Get("/products/{productID}", h.GetProduct)
	r.Post("/products", h.CreateProduct)
	r.Put("/products/{productID}", h.UpdateProduct)
	r.Delete("/products/{productID}", h.DeleteProduct)
	return r
}

type ProductRequestDTO struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	StockQuantity int     `json:"stock_quantity"`
	Category      string  `json:"category"`
	ImageURL      string  `json:"image_url"`
	Active        *bool   `json:"active,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeProductRequest(w, r)
	if !ok {
		return
	}

	product := req.toDomain(0)
	created, err := h.service.CreateProduct(r.Context(), product)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}

	req, ok := decodeProductRequest(w, r)
	if !ok {
		return
	}

	updated, err := h.service.UpdateProduct(r.Context(), req.toDomain(productID))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), productID); err != nil {
		h.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
		return
	}
	h.logger.Error("catalog request failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func (r ProductRequestDTO) toDomain(id int64) *domain.Product {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	currency := r.Currency
	if currency == "" {
		currency = "USD"
	}
	return &domain.Product{
		ID:            id,
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price,
		Currency:      currency,
		StockQuantity: r.StockQuantity,
		Category:      r.Category,
		ImageURL:      r.ImageURL,
		Active:        active,
	}
}

func parseProductID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a positive integer")
		return 0, false
	}
	return productID, true
}

func decodeProductRequest(w http.ResponseWriter, r *http.Request) (ProductRequestDTO, bool) {
	var req ProductRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return req, false
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid_name", "name is required")
		return req, false
	}
	if req.Price <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_price", "price must be positive")
		return req, false
	}
	return req, true
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
