// Package shop tracks the client-side mirror of the server economy:
// current offers, gold, owned items, and outbound transactions awaiting
// confirmation. Nothing here mutates speculatively; state changes only
// on confirmed server results.
package shop

import (
	"time"

	"github.com/jspeir/arenaclient/internal/protocol"
)

// TransactionKind names the request a pending entry correlates with.
type TransactionKind string

const (
	TxPurchase TransactionKind = "purchase"
	TxSell     TransactionKind = "sell"
	TxRefresh  TransactionKind = "refresh"
)

// RefreshKey keys the pending refresh entry; a refresh request names no
// item id.
const RefreshKey = "__refresh__"

// PendingTransaction correlates an outbound economy request with its
// expected cost until the matching result arrives.
type PendingTransaction struct {
	Kind   TransactionKind
	ItemID string
	Cost   int
	SentAt time.Time
}

// Tracker is the optimistic-update-free ledger. Not safe for concurrent
// use; the session loop is its only caller.
type Tracker struct {
	gold        int
	refreshCost int
	offers      []protocol.Offer
	owned       map[string]bool
	pending     map[string]PendingTransaction

	totalSpent     int
	totalPurchases int
}

func NewTracker() *Tracker {
	return &Tracker{
		owned:   make(map[string]bool),
		pending: make(map[string]PendingTransaction),
	}
}

// Record stores a pending transaction after its request was actually
// sent. Refresh requests are stored under RefreshKey.
func (t *Tracker) Record(kind TransactionKind, itemID string, cost int) {
	key := itemID
	if kind == TxRefresh {
		key = RefreshKey
	}
	t.pending[key] = PendingTransaction{Kind: kind, ItemID: itemID, Cost: cost, SentAt: time.Now()}
}

// take removes and returns the pending entry for key. A miss is a
// recoverable no-op: a stray server result must never crash the client.
func (t *Tracker) take(key string) (PendingTransaction, bool) {
	tx, ok := t.pending[key]
	if ok {
		delete(t.pending, key)
	}
	return tx, ok
}

// SetOffers replaces the offer list wholesale, as on options or
// shop_phase_start pushes.
func (t *Tracker) SetOffers(offers []protocol.Offer, gold, refreshCost int) {
	t.offers = append([]protocol.Offer(nil), offers...)
	t.gold = gold
	t.refreshCost = refreshCost
}

// ApplyPurchaseResult resolves a pending purchase. On success the item
// is marked purchased and gold drops by the confirmed cost, or snaps to
// the server balance when one is included.
func (t *Tracker) ApplyPurchaseResult(res *protocol.PurchaseResult) (PendingTransaction, bool) {
	id := res.ItemID
	if id == "" {
		id = res.FighterID
	}
	tx, ok := t.take(id)
	if !ok {
		// Transaction mismatch: a stray result is a no-op, never a
		// local state change.
		return tx, false
	}
	if !res.Success {
		if res.RemainingGold != nil {
			t.gold = *res.RemainingGold
		}
		return tx, true
	}

	cost := res.Cost
	if cost == 0 {
		cost = tx.Cost
	}
	t.gold -= cost
	if res.RemainingGold != nil {
		t.gold = *res.RemainingGold
	}
	t.owned[id] = true
	t.totalSpent += cost
	t.totalPurchases++
	for i := range t.offers {
		if t.offers[i].ID == id {
			t.offers[i].AlreadyPurchased = true
		}
	}
	return tx, ok
}

// ApplyRefreshResult resolves a pending refresh. Success replaces the
// entire offer list; failure leaves it intact.
func (t *Tracker) ApplyRefreshResult(res *protocol.RefreshResult) (PendingTransaction, bool) {
	tx, ok := t.take(RefreshKey)
	if !ok {
		return tx, false
	}
	if res.Success {
		if res.RemainingGold != nil {
			t.gold = *res.RemainingGold
		} else {
			t.gold -= tx.Cost
		}
		t.offers = append([]protocol.Offer(nil), res.Data...)
	}
	return tx, true
}

// ApplySellResult resolves a pending sell. Success removes the item from
// the inventory mirror and credits gold.
func (t *Tracker) ApplySellResult(res *protocol.SellResult) (PendingTransaction, bool) {
	tx, ok := t.take(res.ItemID)
	if !ok {
		return tx, false
	}
	if !res.Success {
		return tx, true
	}
	delete(t.owned, res.ItemID)
	if res.RemainingGold != nil {
		t.gold = *res.RemainingGold
	}
	return tx, true
}

// ApplyStatus mirrors a status summary from the server.
func (t *Tracker) ApplyStatus(st *protocol.StatusInfo) {
	t.gold = st.Gold
	t.totalPurchases = st.TotalPurchases
	for _, id := range st.ItemsOwned {
		t.owned[id] = true
	}
}

// ApplyPurchasesList mirrors the purchase history summary.
func (t *Tracker) ApplyPurchasesList(pl *protocol.PurchasesList) {
	t.totalSpent = pl.TotalSpent
	for _, id := range pl.ItemsOwned {
		t.owned[id] = true
	}
}

// InvalidateAll fails every pending transaction, as on disconnect, and
// returns them so the session can surface the failures.
func (t *Tracker) InvalidateAll() []PendingTransaction {
	if len(t.pending) == 0 {
		return nil
	}
	failed := make([]PendingTransaction, 0, len(t.pending))
	for _, tx := range t.pending {
		failed = append(failed, tx)
	}
	t.pending = make(map[string]PendingTransaction)
	return failed
}

func (t *Tracker) Gold() int        { return t.gold }
func (t *Tracker) RefreshCost() int { return t.refreshCost }
func (t *Tracker) Pending() int     { return len(t.pending) }
func (t *Tracker) Owns(id string) bool {
	return t.owned[id]
}

// Offers returns a copy; the internal slice is replaced wholesale on
// refresh and must not leak.
func (t *Tracker) Offers() []protocol.Offer {
	return append([]protocol.Offer(nil), t.offers...)
}

// OfferCost looks up the advertised cost for an offer id.
func (t *Tracker) OfferCost(id string) (int, bool) {
	for _, o := range t.offers {
		if o.ID == id {
			return o.Cost, true
		}
	}
	return 0, false
}
