// Package rest provides the HTTP API of the storefront.
package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	sferrors "github.com/abgdnv/verdant/internal/errors"
	"github.com/abgdnv/verdant/internal/service"
	"github.com/abgdnv/verdant/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	service service.StorefrontService
	logger  *slog.Logger
}

// NewHandler creates the HTTP handlers on top of the storefront service.
func NewHandler(service service.StorefrontService, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes of the storefront.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", h.QueryProducts)
		r.Get("/products/{id}", h.FindProduct)
		r.Get("/facets", h.Facets)

		r.Route("/cart", func(r chi.Router) {
			r.Use(web.SessionMiddleware)
			r.Get("/", h.Cart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddItem)
			r.Put("/items/{id}/{size}", h.UpdateQuantity)
			r.Delete("/items/{id}/{size}", h.RemoveItem)
			r.Post("/open", h.OpenCart)
			r.Post("/close", h.CloseCart)
			r.Post("/checkout", h.Checkout)
		})
	})

	r.Get("/healthz", h.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
}

// QueryProducts filters and sorts the catalog. List parameters may be repeated or comma separated.
func (h *Handler) QueryProducts(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	q := r.URL.Query()
	filter := service.FilterDto{
		Search:         q.Get("search"),
		Categories:     listParam(q["category"]),
		Materials:      listParam(q["material"]),
		Certifications: listParam(q["certification"]),
		SortBy:         q.Get("sort"),
	}
	var ok bool
	if filter.MinPrice, ok = optionalFloat(w, r, mLogger, "min"); !ok {
		return
	}
	if filter.MaxPrice, ok = optionalFloat(w, r, mLogger, "max"); !ok {
		return
	}

	mLogger.DebugContext(r.Context(), "Received catalog query", "filter", filter)
	result, err := h.service.QueryProducts(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	mLogger.DebugContext(r.Context(), "Catalog query served", "total", result.TotalCount, "filtered", result.FilteredCount)
	web.RespondJSON(w, mLogger, http.StatusOK, result)
}

// FindProduct retrieves a product by its ID.
func (h *Handler) FindProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseIntParam(w, r, mLogger, "id")
	if !ok {
		return
	}
	found, err := h.service.FindProduct(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, found)
}

func (h *Handler) Facets(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	facets, err := h.service.Facets(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, facets)
}

func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	h.cartOp(w, r, func(ctx context.Context, session string) (*service.CartDto, error) {
		return h.service.Cart(ctx, session)
	})
}

// AddItem adds one unit of a product in a size to the session's cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var in service.AddItemDto
	if err := web.DecodeJSON(w, r, &in); err != nil {
		mLogger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.cartOp(w, r, func(ctx context.Context, session string) (*service.CartDto, error) {
		return h.service.AddItem(ctx, session, in)
	})
}

// UpdateQuantity expects a body of the form {"quantity": n}; zero or less removes the line.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseIntParam(w, r, mLogger, "id")
	if !ok {
		return
	}
	var body struct {
		Quantity *int `json:"quantity"`
	}
	if err := web.DecodeJSON(w, r, &body); err != nil || body.Quantity == nil {
		mLogger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	in := service.UpdateQuantityDto{ProductID: id, Size: r.PathValue("size"), Quantity: *body.Quantity}
	h.cartOp(w, r, func(ctx context.Context, session string) (*service.CartDto, error) {
		return h.service.UpdateQuantity(ctx, session, in)
	})
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseIntParam(w, r, mLogger, "id")
	if !ok {
		return
	}
	size := r.PathValue("size")
	h.cartOp(w, r, func(ctx context.Context, session string) (*service.CartDto, error) {
		return h.service.RemoveItem(ctx, session, id, size)
	})
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.cartOp(w, r, h.service.ClearCart)
}

func (h *Handler) OpenCart(w http.ResponseWriter, r *http.Request) {
	h.cartOp(w, r, h.service.OpenCart)
}

func (h *Handler) CloseCart(w http.ResponseWriter, r *http.Request) {
	h.cartOp(w, r, h.service.CloseCart)
}

// Checkout places the simulated order. It blocks for the configured checkout delay.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	session := web.SessionID(r.Context())
	receipt, err := h.service.Checkout(r.Context(), session)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	mLogger.InfoContext(r.Context(), "Checkout completed", "order_id", receipt.OrderID)
	web.RespondJSON(w, mLogger, http.StatusCreated, receipt)
}

// HealthCheck responds with a simple status message.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) cartOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, session string) (*service.CartDto, error)) {
	mLogger := h.loggerWithReqID(r)
	c, err := op(r.Context(), web.SessionID(r.Context()))
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, c)
}

// respondServiceError maps service errors to HTTP statuses.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, sferrors.ErrProductNotFound):
		logger.WarnContext(ctx, "Product not found", "error", err)
		web.RespondError(w, logger, http.StatusNotFound, err.Error())
	case errors.Is(err, sferrors.ErrInvalidItem):
		logger.WarnContext(ctx, "Validation errors occurred", "error", err)
		web.RespondValidationErrors(w, logger, err)
	case errors.Is(err, sferrors.ErrInvalidSession):
		web.RespondError(w, logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, sferrors.ErrCartEmpty):
		web.RespondError(w, logger, http.StatusConflict, "Cannot check out an empty cart")
	case errors.Is(err, sferrors.ErrCheckoutInProgress):
		web.RespondError(w, logger, http.StatusConflict, "Checkout already in progress")
	case errors.Is(err, sferrors.ErrCartStoreUnavailable):
		logger.WarnContext(ctx, "Cart store unavailable", "error", err)
		web.RespondError(w, logger, http.StatusServiceUnavailable, "Cart temporarily unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.WarnContext(ctx, "Request interrupted", "error", err)
		web.RespondError(w, logger, http.StatusServiceUnavailable, "Request interrupted")
	default:
		logger.ErrorContext(ctx, "Unexpected service error", "error", err)
		web.RespondError(w, logger, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}

// listParam flattens repeated and comma separated query values, dropping blanks.
func listParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func optionalFloat(w http.ResponseWriter, r *http.Request, logger *slog.Logger, key string) (*float64, bool) {
	if !r.URL.Query().Has(key) {
		return nil, true
	}
	v, ok := web.ParseFloatQuery(w, r, logger, key, 0)
	if !ok {
		return nil, false
	}
	return &v, true
}
