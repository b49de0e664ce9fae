package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/shopping-cart/internal/domain"
	"github.com/fjod/go_cart/shopping-cart/internal/repository"
	"github.com/fjod/go_cart/shopping-cart/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const removedMessage = "Cart item removed successfully"

// CartService is the orchestrator behind the REST surface.
type CartService interface {
	AddToCart(ctx context.Context, credential string, req domain.AddToCartRequest) (*domain.CartLine, error)
	ListCart(ctx context.Context, username string) ([]domain.CartLine, error)
	RemoveLine(ctx context.Context, id string) error
	RemoveAllForUser(ctx context.Context, username string) error
	Checkout(ctx context.Context, username string) (*domain.CheckoutOrder, error)
}

type CartHandler struct {
	service     CartService
	timeout     time.Duration
	maxBodySize int64
	validate    *validator.Validate
	log         *zap.Logger
}

func NewCartHandler(service CartService, timeout time.Duration, maxBodySize int64, log *zap.Logger) *CartHandler {
	return &CartHandler{
		service:     service,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		log:         log,
	}
}

func (h *CartHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddToCartRequestDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondErrorDetails(w, http.StatusBadRequest, "validation_failed", "request validation failed", validationDetails(err))
		return
	}

	line, err := h.service.AddToCart(ctx, bearerToken(r), domain.AddToCartRequest{
		Username:    req.Username,
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, convertLine(*line))
}

func (h *CartHandler) ListCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lines, err := h.service.ListCart(ctx, chi.URLParam(r, "username"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, convertLines(lines))
}

func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.service.RemoveLine(ctx, chi.URLParam(r, "cartId")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondText(w, http.StatusOK, removedMessage)
}

func (h *CartHandler) RemoveAllForUser(w http.ResponseWriter, r *http.Request) {
	// the unit of work detaches itself from this deadline
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.service.RemoveAllForUser(ctx, chi.URLParam(r, "username")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondText(w, http.StatusOK, removedMessage)
}

func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	username := chi.URLParam(r, "username")
	logger.FromContext(r.Context(), h.log).Info("Received checkout request", zap.String("username", username))

	order, err := h.service.Checkout(ctx, username)
	if err != nil {
		if order != nil && errors.Is(err, domain.ErrPublishFailed) {
			logger.FromContext(r.Context(), h.log).Error("checkout built but not published", zap.String("checkout_id", order.CheckoutID.String()), zap.Error(err))
			respondErrorDetails(w, http.StatusBadGateway, "publish_failed", "checkout order could not be published",
				fmt.Sprintf("checkout_id=%s", order.CheckoutID))
			return
		}
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

// bearerToken returns the credential of an "Authorization: Bearer" header, or
// "" when there is none.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func (h *CartHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		httpStatus int
		code       string
		message    = err.Error()
		details    string
	)

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		httpStatus, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrAuthMissing):
		httpStatus, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrUserNotFound):
		httpStatus, code = http.StatusNotFound, "user_not_found"
	case errors.Is(err, domain.ErrProductNotFound):
		httpStatus, code = http.StatusNotFound, "product_not_found"
	case errors.Is(err, domain.ErrOutOfStock):
		httpStatus, code = http.StatusConflict, "out_of_stock"
	case errors.Is(err, repository.ErrConcurrentUpdate):
		httpStatus, code = http.StatusConflict, "concurrent_update"
	case errors.Is(err, domain.ErrEmptyCart):
		httpStatus, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, domain.ErrPublishFailed):
		httpStatus, code = http.StatusBadGateway, "publish_failed"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code, message = http.StatusGatewayTimeout, "timeout", "request timed out"
	default:
		httpStatus, code, message = http.StatusInternalServerError, "internal_error", "internal server error"
		logger.FromContext(r.Context(), h.log).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}

	if errors.Is(err, domain.ErrServiceUnavailable) {
		details = "service_unavailable"
	}

	respondErrorDetails(w, httpStatus, code, message, details)
}
