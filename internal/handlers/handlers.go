// Package handlers exposes the marketplace core over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/forlotto/particl-market/internal/bid"
	"github.com/forlotto/particl-market/internal/models"
	"github.com/forlotto/particl-market/internal/order"
	"github.com/forlotto/particl-market/internal/protocol"
)

// Store is the persistence collaborator the handlers need.
type Store interface {
	FindListingItemByHash(ctx context.Context, hash string) (*models.ListingItem, error)
	InsertOrder(ctx context.Context, record *models.OrderCreateRecord) (*models.Order, error)
}

// Canceller applies bid cancellation messages.
type Canceller interface {
	Cancel(ctx context.Context, msg *protocol.CancelBidMessage) (*models.Bid, error)
}

// Handler contains the HTTP request handlers.
type Handler struct {
	store     Store
	assembler *order.Assembler
	canceller Canceller
	log       *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(store Store, assembler *order.Assembler, canceller Canceller, log *zap.Logger) *Handler {
	return &Handler{
		store:     store,
		assembler: assembler,
		canceller: canceller,
		log:       log,
	}
}

// SetupRoutes configures all HTTP routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/listings/{hash}", h.GetListing).Methods("GET")
	api.HandleFunc("/listings/{hash}/bids/cancel", h.CancelBid).Methods("POST")
	api.HandleFunc("/orders", h.CreateOrder).Methods("POST")

	router.Use(h.loggingMiddleware)

	return router
}

// HealthCheck returns service health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "marketd",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// GetListing returns a listing item and its bids.
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	item, err := h.store.FindListingItemByHash(r.Context(), hash)
	if err != nil {
		if errors.Is(err, models.ErrListingItemNotFound) {
			respondError(w, http.StatusNotFound, "listing item not found")
			return
		}
		h.log.Error("failed to load listing item", zap.String("hash", hash), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to retrieve listing item")
		return
	}

	respondJSON(w, http.StatusOK, item)
}

// createOrderRequest is the payload for order assembly. Hash is set when
// the counterparty already computed the order hash and we only verify it.
type createOrderRequest struct {
	ItemHash  string `json:"item_hash"`
	AddressID int64  `json:"address_id"`
	Buyer     string `json:"buyer"`
	Seller    string `json:"seller"`
	Hash      string `json:"hash,omitempty"`
}

// CreateOrder assembles an order from a listing's accepted bids and
// persists it.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemHash == "" || req.Buyer == "" || req.Seller == "" {
		respondError(w, http.StatusBadRequest, "item_hash, buyer and seller are required")
		return
	}

	ctx := r.Context()
	item, err := h.store.FindListingItemByHash(ctx, req.ItemHash)
	if err != nil {
		if errors.Is(err, models.ErrListingItemNotFound) {
			respondError(w, http.StatusNotFound, "listing item not found")
			return
		}
		h.log.Error("failed to load listing item", zap.String("hash", req.ItemHash), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to retrieve listing item")
		return
	}

	accepted := acceptedBids(item.Bids)
	if len(accepted) == 0 {
		respondError(w, http.StatusConflict, "listing item has no accepted bid")
		return
	}

	record, err := h.assembler.Assemble(order.CreateParams{
		AddressID:   req.AddressID,
		Buyer:       req.Buyer,
		Seller:      req.Seller,
		Bids:        accepted,
		Status:      models.OrderStatusAwaitingEscrow,
		GeneratedAt: time.Now().UTC().UnixMilli(),
		Hash:        req.Hash,
	})
	if err != nil {
		var mismatch *order.HashMismatchError
		if errors.As(err, &mismatch) {
			respondError(w, http.StatusConflict, mismatch.Error())
			return
		}
		h.log.Error("order assembly failed", zap.String("item_hash", req.ItemHash), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to assemble order")
		return
	}

	created, err := h.store.InsertOrder(ctx, record)
	if err != nil {
		h.log.Error("failed to persist order", zap.String("order_hash", record.Hash), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to persist order")
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// CancelBid applies a cancellation for the listing's bid, the same path the
// NATS intake uses.
func (h *Handler) CancelBid(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	updated, err := h.canceller.Cancel(r.Context(), &protocol.CancelBidMessage{ItemHash: hash})
	if err != nil {
		var notFound *bid.NotFoundError
		var noBid *bid.NoBidError
		var invalid *bid.InvalidTransitionError
		switch {
		case errors.As(err, &notFound), errors.As(err, &noBid):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.As(err, &invalid):
			respondError(w, http.StatusConflict, err.Error())
		default:
			h.log.Error("bid cancellation failed", zap.String("hash", hash), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to cancel bid")
		}
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

// acceptedBids filters the bids an order may be assembled from.
func acceptedBids(bids []models.Bid) []models.Bid {
	accepted := make([]models.Bid, 0, len(bids))
	for _, b := range bids {
		if b.Status == models.BidStatusAccepted {
			accepted = append(accepted, b)
		}
	}
	return accepted
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}

// loggingMiddleware logs all HTTP requests.
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.Info("request",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Duration("duration", time.Since(start)))
	})
}
