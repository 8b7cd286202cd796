package shop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jspeir/arenaclient/internal/protocol"
)

func intp(n int) *int { return &n }

func newStockedTracker() *Tracker {
	t := NewTracker()
	t.SetOffers([]protocol.Offer{
		{ID: "weapons_sword_iron_sword", Cost: 100, Stock: 1, CanAfford: true},
		{ID: "armour_light_leather_armour", Cost: 60, Stock: 2, CanAfford: true},
	}, 1000, 10)
	return t
}

func TestPurchaseResolveDecrementsGoldAndMarksOffer(t *testing.T) {
	tr := newStockedTracker()
	tr.Record(TxPurchase, "weapons_sword_iron_sword", 100)

	tx, ok := tr.ApplyPurchaseResult(&protocol.PurchaseResult{
		Success: true,
		ItemID:  "weapons_sword_iron_sword",
		Cost:    100,
	})
	require.True(t, ok)
	assert.Equal(t, TxPurchase, tx.Kind)
	assert.Equal(t, 900, tr.Gold())
	assert.True(t, tr.Owns("weapons_sword_iron_sword"))

	for _, o := range tr.Offers() {
		if o.ID == "weapons_sword_iron_sword" {
			assert.True(t, o.AlreadyPurchased)
		}
	}
	assert.Equal(t, 0, tr.Pending())
}

func TestServerBalanceWins(t *testing.T) {
	tr := newStockedTracker()
	tr.Record(TxPurchase, "weapons_sword_iron_sword", 100)

	_, ok := tr.ApplyPurchaseResult(&protocol.PurchaseResult{
		Success:       true,
		ItemID:        "weapons_sword_iron_sword",
		Cost:          100,
		RemainingGold: intp(850), // server says interest accrued elsewhere
	})
	require.True(t, ok)
	assert.Equal(t, 850, tr.Gold())
}

func TestResolveUnknownItemIsNoOp(t *testing.T) {
	tr := newStockedTracker()

	tx, ok := tr.ApplyPurchaseResult(&protocol.PurchaseResult{
		Success: true,
		ItemID:  "weapons_axe_ghost_axe",
		Cost:    500,
	})
	assert.False(t, ok)
	assert.Zero(t, tx.SentAt)
	assert.Equal(t, 1000, tr.Gold(), "a stray result never alters gold")
	assert.False(t, tr.Owns("weapons_axe_ghost_axe"))
}

func TestFailedPurchaseLeavesStateAlone(t *testing.T) {
	tr := newStockedTracker()
	tr.Record(TxPurchase, "weapons_sword_iron_sword", 100)

	_, ok := tr.ApplyPurchaseResult(&protocol.PurchaseResult{
		Success: false,
		ItemID:  "weapons_sword_iron_sword",
		Reason:  "insufficient gold",
	})
	require.True(t, ok, "pending entry is still consumed")
	assert.Equal(t, 1000, tr.Gold())
	assert.False(t, tr.Owns("weapons_sword_iron_sword"))
}

func TestRefreshReplacesOffersWholesale(t *testing.T) {
	tr := newStockedTracker()
	tr.Record(TxRefresh, "", 10)

	_, ok := tr.ApplyRefreshResult(&protocol.RefreshResult{
		Success:       true,
		Data:          []protocol.Offer{{ID: "features_passive_thick_skin", Cost: 40}},
		RemainingGold: intp(990),
	})
	require.True(t, ok)

	offers := tr.Offers()
	require.Len(t, offers, 1)
	assert.Equal(t, "features_passive_thick_skin", offers[0].ID)
	assert.Equal(t, 990, tr.Gold())
}

func TestFailedRefreshKeepsOffers(t *testing.T) {
	tr := newStockedTracker()
	tr.Record(TxRefresh, "", 10)

	_, ok := tr.ApplyRefreshResult(&protocol.RefreshResult{
		Success: false,
		Message: "not enough gold",
	})
	require.True(t, ok)
	assert.Len(t, tr.Offers(), 2)
	assert.Equal(t, 1000, tr.Gold())
}

func TestSellRemovesFromInventoryMirror(t *testing.T) {
	tr := newStockedTracker()
	tr.Record(TxPurchase, "armour_light_leather_armour", 60)
	tr.ApplyPurchaseResult(&protocol.PurchaseResult{
		Success: true, ItemID: "armour_light_leather_armour", Cost: 60,
	})
	require.True(t, tr.Owns("armour_light_leather_armour"))

	tr.Record(TxSell, "armour_light_leather_armour", 0)
	_, ok := tr.ApplySellResult(&protocol.SellResult{
		Success:       true,
		ItemID:        "armour_light_leather_armour",
		RemainingGold: intp(970),
	})
	require.True(t, ok)
	assert.False(t, tr.Owns("armour_light_leather_armour"))
	assert.Equal(t, 970, tr.Gold())
}

func TestInvalidateAllFailsEveryPending(t *testing.T) {
	tr := newStockedTracker()
	tr.Record(TxPurchase, "weapons_sword_iron_sword", 100)
	tr.Record(TxRefresh, "", 10)

	failed := tr.InvalidateAll()
	assert.Len(t, failed, 2)
	assert.Equal(t, 0, tr.Pending())
	assert.Nil(t, tr.InvalidateAll(), "second call has nothing to fail")
}

func TestOfferCost(t *testing.T) {
	tr := newStockedTracker()
	cost, ok := tr.OfferCost("weapons_sword_iron_sword")
	require.True(t, ok)
	assert.Equal(t, 100, cost)

	_, ok = tr.OfferCost("nope")
	assert.False(t, ok)
}

func TestParseItemID(t *testing.T) {
	cases := []struct {
		name    string
		id      string
		want    ItemID
		wantErr bool
	}{
		{
			name: "standard three part",
			id:   "weapons_sword_iron_sword",
			want: ItemID{Category: "weapons", Subcategory: "sword", Name: "iron_sword"},
		},
		{
			name: "two word category with subcategory",
			id:   "learning_modifiers_rate_fast_learner",
			want: ItemID{Category: "learning_modifiers", Subcategory: "rate", Name: "fast_learner"},
		},
		{
			name: "two word category name only",
			id:   "reward_modifiers_aggression",
			want: ItemID{Category: "reward_modifiers", Name: "aggression"},
		},
		{
			name:    "too few segments",
			id:      "weapons_sword",
			wantErr: true,
		},
		{
			name:    "two word category with no name",
			id:      "learning_modifiers",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseItemID(tc.id)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrBadItemID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
