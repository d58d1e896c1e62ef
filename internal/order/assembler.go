// Package order assembles accepted bids into immutable order records.
package order

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/forlotto/particl-market/internal/hash"
	"github.com/forlotto/particl-market/internal/models"
)

// HashMismatchError is returned when a counterparty-supplied order hash does
// not equal the hash computed locally over the same fields. It is fatal to
// the assembly call: retrying recomputes the same mismatch.
type HashMismatchError struct {
	Supplied string
	Computed string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("order hash mismatch: supplied %s, computed %s", e.Supplied, e.Computed)
}

// CreateParams are the inputs to an assembly call. Bids are previously
// accepted bids, each carrying the frozen hash of its listing item. Hash is
// set when the counterparty originated the order (e.g. the seller receiving
// the buyer's order hash) and empty when this party is the originator.
type CreateParams struct {
	AddressID   int64
	Buyer       string
	Seller      string
	Bids        []models.Bid
	Status      string
	GeneratedAt int64
	Hash        string
}

// Assembler produces order-creation records from accepted bids. It has no
// side effects; persistence is the caller's concern.
type Assembler struct {
	hashFn hash.Func
	cfg    hash.Config
	log    *zap.Logger
}

// NewAssembler creates an Assembler. A nil hashFn selects hash.Canonical.
func NewAssembler(hashFn hash.Func, log *zap.Logger) *Assembler {
	if hashFn == nil {
		hashFn = hash.Canonical
	}
	return &Assembler{
		hashFn: hashFn,
		cfg:    hash.OrderV1(),
		log:    log,
	}
}

// Assemble derives one order item per bid and either assigns the canonical
// order hash (no hash supplied: we originate) or verifies the supplied hash
// against the local computation (counterparty originated). On mismatch no
// record is returned.
func (a *Assembler) Assemble(p CreateParams) (*models.OrderCreateRecord, error) {
	if len(p.Bids) == 0 {
		return nil, errors.New("order: at least one accepted bid is required")
	}

	record := &models.OrderCreateRecord{
		AddressID:   p.AddressID,
		Buyer:       p.Buyer,
		Seller:      p.Seller,
		OrderItems:  orderItems(p.Bids),
		Status:      p.Status,
		GeneratedAt: p.GeneratedAt,
		Hash:        p.Hash,
	}

	computed, err := a.hashFn(hashFields(record), a.cfg)
	if err != nil {
		return nil, fmt.Errorf("order: compute canonical hash: %w", err)
	}

	if record.Hash == "" {
		record.Hash = computed
	} else if record.Hash != computed {
		a.log.Warn("order hash verification failed",
			zap.String("supplied", record.Hash),
			zap.String("computed", computed))
		return nil, &HashMismatchError{Supplied: record.Hash, Computed: computed}
	}

	return record, nil
}

// orderItems derives one order item per bid. The listing item hash is copied
// from the bid rather than re-resolved, and every item starts as BIDDED
// regardless of the source bid's current status.
//
// TODO: downstream order processing handles a single item per order; wire
// multi-item settlement before relying on len(bids) > 1 here.
func orderItems(bids []models.Bid) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(bids))
	for _, bid := range bids {
		items = append(items, models.OrderItem{
			BidID:    bid.ID,
			ItemHash: bid.ListingItemHash,
			Status:   models.OrderItemStatusBidded,
		})
	}
	return items
}

// hashFields selects the immutable subset of the record that feeds the
// canonical hash. The record's own Hash field is deliberately excluded.
func hashFields(r *models.OrderCreateRecord) map[string]any {
	return map[string]any{
		"address":     r.AddressID,
		"buyer":       r.Buyer,
		"seller":      r.Seller,
		"orderItems":  r.OrderItems,
		"status":      r.Status,
		"generatedAt": r.GeneratedAt,
	}
}
