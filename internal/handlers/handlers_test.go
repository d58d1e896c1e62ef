package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/forlotto/particl-market/internal/bid"
	"github.com/forlotto/particl-market/internal/models"
	"github.com/forlotto/particl-market/internal/order"
)

// fakeStore backs the handlers with in-memory data.
type fakeStore struct {
	item        *models.ListingItem
	insertedRec *models.OrderCreateRecord
}

func (f *fakeStore) FindListingItemByHash(ctx context.Context, hash string) (*models.ListingItem, error) {
	if f.item == nil || f.item.Hash != hash {
		return nil, models.ErrListingItemNotFound
	}
	return f.item, nil
}

func (f *fakeStore) InsertOrder(ctx context.Context, record *models.OrderCreateRecord) (*models.Order, error) {
	f.insertedRec = record
	return &models.Order{
		ID:          1,
		Hash:        record.Hash,
		AddressID:   record.AddressID,
		Buyer:       record.Buyer,
		Seller:      record.Seller,
		OrderItems:  record.OrderItems,
		Status:      record.Status,
		GeneratedAt: record.GeneratedAt,
	}, nil
}

func (f *fakeStore) UpdateBidStatus(ctx context.Context, bidID int64, update models.BidStatusUpdate) (*models.Bid, error) {
	updated := f.item.Bids[0]
	updated.Status = update.Status
	return &updated, nil
}

func listingWithBid(status string) *models.ListingItem {
	return &models.ListingItem{
		ID:   12,
		Hash: "abc123",
		Bids: []models.Bid{{
			ID:              7,
			ListingItemID:   12,
			ListingItemHash: "abc123",
			Bidder:          "pb1buyeraddress",
			Amount:          decimal.RequireFromString("1.25"),
			Status:          status,
		}},
	}
}

func newTestHandler(t *testing.T, store *fakeStore) *Handler {
	log := zaptest.NewLogger(t)
	assembler := order.NewAssembler(nil, log)
	canceller := bid.NewCancelHandler(store, store, log)
	return NewHandler(store, assembler, canceller, log)
}

func doRequest(h *Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.SetupRoutes().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(t, &fakeStore{})
	rec := doRequest(h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetListing(t *testing.T) {
	h := newTestHandler(t, &fakeStore{item: listingWithBid(models.BidStatusActive)})
	rec := doRequest(h, http.MethodGet, "/api/v1/listings/abc123", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var item models.ListingItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, "abc123", item.Hash)
	assert.Len(t, item.Bids, 1)
}

func TestGetListingNotFound(t *testing.T) {
	h := newTestHandler(t, &fakeStore{})
	rec := doRequest(h, http.MethodGet, "/api/v1/listings/zzz", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateOrder(t *testing.T) {
	store := &fakeStore{item: listingWithBid(models.BidStatusAccepted)}
	h := newTestHandler(t, store)

	body, _ := json.Marshal(map[string]any{
		"item_hash":  "abc123",
		"address_id": 3,
		"buyer":      "pb1buyeraddress",
		"seller":     "pb1selleraddress",
	})
	rec := doRequest(h, http.MethodPost, "/api/v1/orders", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Hash)
	require.Len(t, created.OrderItems, 1)
	assert.Equal(t, int64(7), created.OrderItems[0].BidID)
	assert.Equal(t, "abc123", created.OrderItems[0].ItemHash)
	assert.Equal(t, models.OrderItemStatusBidded, created.OrderItems[0].Status)
	require.NotNil(t, store.insertedRec)
}

func TestCreateOrderHashMismatch(t *testing.T) {
	store := &fakeStore{item: listingWithBid(models.BidStatusAccepted)}
	h := newTestHandler(t, store)

	body, _ := json.Marshal(map[string]any{
		"item_hash":  "abc123",
		"address_id": 3,
		"buyer":      "pb1buyeraddress",
		"seller":     "pb1selleraddress",
		"hash":       "deadbeef",
	})
	rec := doRequest(h, http.MethodPost, "/api/v1/orders", body)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Nil(t, store.insertedRec)
	assert.Contains(t, rec.Body.String(), "mismatch")
}

func TestCreateOrderNoAcceptedBid(t *testing.T) {
	h := newTestHandler(t, &fakeStore{item: listingWithBid(models.BidStatusActive)})

	body, _ := json.Marshal(map[string]any{
		"item_hash": "abc123",
		"buyer":     "pb1buyeraddress",
		"seller":    "pb1selleraddress",
	})
	rec := doRequest(h, http.MethodPost, "/api/v1/orders", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelBid(t *testing.T) {
	h := newTestHandler(t, &fakeStore{item: listingWithBid(models.BidStatusActive)})
	rec := doRequest(h, http.MethodPost, "/api/v1/listings/abc123/bids/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Bid
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, int64(7), updated.ID)
	assert.Equal(t, models.BidStatusCancelled, updated.Status)
}

func TestCancelBidNotFound(t *testing.T) {
	h := newTestHandler(t, &fakeStore{})
	rec := doRequest(h, http.MethodPost, "/api/v1/listings/zzz/bids/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "zzz")
}

func TestCancelBidInvalidTransition(t *testing.T) {
	h := newTestHandler(t, &fakeStore{item: listingWithBid(models.BidStatusCancelled)})
	rec := doRequest(h, http.MethodPost, "/api/v1/listings/abc123/bids/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), models.BidStatusCancelled)
}
