package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed marks inbound data that cannot be treated as a protocol
// message at all. Callers should drop the message and keep the session
// alive.
var ErrMalformed = errors.New("malformed message")

// Server -> Client message types.
const (
	MsgConnected            = "connected"
	MsgConnectionError      = "connection_error"
	MsgDisconnected         = "disconnected"
	MsgOpponentConnected    = "opponent_connected"
	MsgOpponentDisconnected = "opponent_disconnected"

	MsgMatchmakingStarted    = "matchmaking_started"
	MsgMatchFound            = "match_found"
	MsgFighterSelectionReady = "fighter_selection_ready"
	MsgInitialShopReady      = "initial_shop_ready"
	MsgWaitingForOpponent    = "waiting_for_opponent"
	MsgOpponentReady         = "opponent_ready"
	MsgFightStarting         = "fight_starting"
	MsgBatchCompleted        = "batch_completed"
	MsgShopPhaseStart        = "shop_phase_start"

	MsgReplayData     = "replay_data"
	MsgReplayNext     = "replay_next"
	MsgReplayPrevious = "replay_previous"
	MsgReplayList     = "replay_list"

	MsgOptions        = "options"
	MsgPurchaseResult = "purchase_result"
	MsgRefreshResult  = "refresh_result"
	MsgSellResult     = "sell_result"
	MsgPurchasesList  = "purchases_list"

	MsgStatus = "status"
	MsgError  = "error"
)

// Client -> Server message types.
const (
	MsgConnect    = "connect"
	MsgDisconnect = "disconnect"

	MsgPurchaseOption    = "purchase_option"
	MsgRequestOptions    = "request_options"
	MsgRefreshShop       = "refresh_shop"
	MsgSellItem          = "sell_item"
	MsgRequestPurchases  = "request_purchases"
	MsgShopPhaseComplete = "shop_phase_complete"

	MsgReplayViewed          = "replay_viewed"
	MsgRequestNextReplay     = "request_next_replay"
	MsgRequestPreviousReplay = "request_previous_replay"
	MsgRequestReplayList     = "request_replay_list"
	MsgRequestReplayByIndex  = "request_replay_by_index"
)

// Inbound is a server message decoded once at the transport boundary.
// Payload is a pointer to the typed payload struct for known types, nil
// otherwise; Raw always carries the original bytes so forward-compatible
// fields survive.
type Inbound struct {
	Type    string
	Raw     json.RawMessage
	Payload any
}

// Connected acknowledges a connect request. The server-assigned id
// replaces the client-generated token for the rest of the session.
type Connected struct {
	ClientID string `json:"client_id"`
	Message  string `json:"message,omitempty"`
}

type MatchFound struct {
	OpponentID string `json:"opponent_id"`
	Message    string `json:"message,omitempty"`
}

type FightStarting struct {
	BatchID     string `json:"batch_id"`
	TotalFights int    `json:"total_fights"`
	Opponent    string `json:"opponent"`
}

type BatchCompleted struct {
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"win_rate"`
}

// Offer is one purchasable shop entry. The list is replaced wholesale on
// every options push or successful refresh.
type Offer struct {
	ID               string `json:"id"`
	Cost             int    `json:"cost"`
	Stock            int    `json:"stock"`
	CanAfford        bool   `json:"can_afford"`
	AlreadyPurchased bool   `json:"already_purchased"`
}

// Options carries the current shop contents. Also used for
// shop_phase_start, which shares the same shape.
type Options struct {
	Data               []Offer         `json:"data"`
	ClientGold         int             `json:"client_gold"`
	RefreshCost        int             `json:"refresh_cost"`
	Inventory          json.RawMessage `json:"inventory,omitempty"`
	LearningParameters json.RawMessage `json:"learning_parameters,omitempty"`
}

// RemainingGold fields are pointers: the server is authoritative when it
// sends a balance, and older servers omit it on some paths.
type PurchaseResult struct {
	Success       bool   `json:"success"`
	ItemID        string `json:"item_id,omitempty"`
	FighterID     string `json:"fighter_id,omitempty"`
	Cost          int    `json:"cost"`
	RemainingGold *int   `json:"remaining_gold,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type RefreshResult struct {
	Success       bool    `json:"success"`
	Data          []Offer `json:"data,omitempty"`
	RemainingGold *int    `json:"remaining_gold,omitempty"`
	Message       string  `json:"message,omitempty"`
}

type SellResult struct {
	Success       bool   `json:"success"`
	ItemID        string `json:"item_id"`
	RemainingGold *int   `json:"remaining_gold,omitempty"`
	Message       string `json:"message,omitempty"`
}

type PurchasesList struct {
	Purchases  json.RawMessage `json:"purchases,omitempty"`
	TotalSpent int             `json:"total_spent"`
	ItemsOwned []string        `json:"items_owned,omitempty"`
}

type StatusInfo struct {
	Gold           int      `json:"gold"`
	ItemsOwned     []string `json:"items_owned,omitempty"`
	TotalPurchases int      `json:"total_purchases"`
}

// ReplayPayload wraps a recorded fight. ReplayData stays raw here; the
// replay package owns the delta decoding.
type ReplayPayload struct {
	ReplayData    json.RawMessage `json:"replay_data"`
	ReplayIndex   int             `json:"replay_index"`
	TotalReplays  int             `json:"total_replays"`
	IsFinalReplay bool            `json:"is_final_replay"`
}

// ReplaySummary is one row of the batch replay index: enough metadata to
// pick a replay without downloading it.
type ReplaySummary struct {
	Index           int     `json:"index"`
	FightNumber     int     `json:"fight_number"`
	Winner          int     `json:"winner"`
	DurationSeconds float64 `json:"duration_seconds"`
	TotalFrames     int     `json:"total_frames"`
	Timestamp       string  `json:"timestamp"`
}

type ReplayList struct {
	Replays      []ReplaySummary `json:"replays"`
	TotalReplays int             `json:"total_replays"`
	CurrentIndex int             `json:"current_index"`
	BatchID      string          `json:"batch_id,omitempty"`
}

type ErrorMessage struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Decode parses one wire message. Unknown types decode to a bare envelope
// with a nil Payload; the phase machine decides what to do with them.
func Decode(data []byte) (Inbound, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Inbound{}, fmt.Errorf("%w: missing type field", ErrMalformed)
	}

	in := Inbound{Type: env.Type, Raw: data}
	payload := payloadFor(env.Type)
	if payload == nil {
		return in, nil
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return Inbound{}, fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
	}
	in.Payload = payload
	return in, nil
}

func payloadFor(msgType string) any {
	switch msgType {
	case MsgConnected:
		return &Connected{}
	case MsgMatchFound:
		return &MatchFound{}
	case MsgFightStarting:
		return &FightStarting{}
	case MsgBatchCompleted:
		return &BatchCompleted{}
	case MsgOptions, MsgShopPhaseStart:
		return &Options{}
	case MsgPurchaseResult:
		return &PurchaseResult{}
	case MsgRefreshResult:
		return &RefreshResult{}
	case MsgSellResult:
		return &SellResult{}
	case MsgPurchasesList:
		return &PurchasesList{}
	case MsgStatus:
		return &StatusInfo{}
	case MsgReplayData, MsgReplayNext, MsgReplayPrevious:
		return &ReplayPayload{}
	case MsgReplayList:
		return &ReplayList{}
	case MsgError, MsgConnectionError:
		return &ErrorMessage{}
	default:
		return nil
	}
}

// Outbound request shapes. Constructors keep the type tag next to the
// payload so callers cannot send a mistagged request.

type ConnectRequest struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

func NewConnect(clientID string) ConnectRequest {
	return ConnectRequest{Type: MsgConnect, ClientID: clientID}
}

type DisconnectRequest struct {
	Type string `json:"type"`
}

func NewDisconnect() DisconnectRequest {
	return DisconnectRequest{Type: MsgDisconnect}
}

type PurchaseOptionRequest struct {
	Type      string `json:"type"`
	OptionID  string `json:"option_id"`
	AutoEquip bool   `json:"auto_equip"`
}

func NewPurchaseOption(optionID string, autoEquip bool) PurchaseOptionRequest {
	return PurchaseOptionRequest{Type: MsgPurchaseOption, OptionID: optionID, AutoEquip: autoEquip}
}

type RefreshShopRequest struct {
	Type string `json:"type"`
}

func NewRefreshShop() RefreshShopRequest {
	return RefreshShopRequest{Type: MsgRefreshShop}
}

type SellItemRequest struct {
	Type   string `json:"type"`
	ItemID string `json:"item_id"`
}

func NewSellItem(itemID string) SellItemRequest {
	return SellItemRequest{Type: MsgSellItem, ItemID: itemID}
}

type RequestOptionsRequest struct {
	Type string `json:"type"`
}

func NewRequestOptions() RequestOptionsRequest {
	return RequestOptionsRequest{Type: MsgRequestOptions}
}

type RequestPurchasesRequest struct {
	Type string `json:"type"`
}

func NewRequestPurchases() RequestPurchasesRequest {
	return RequestPurchasesRequest{Type: MsgRequestPurchases}
}

type ShopPhaseCompleteRequest struct {
	Type string `json:"type"`
}

func NewShopPhaseComplete() ShopPhaseCompleteRequest {
	return ShopPhaseCompleteRequest{Type: MsgShopPhaseComplete}
}

type ReplayViewedRequest struct {
	Type string `json:"type"`
}

func NewReplayViewed() ReplayViewedRequest {
	return ReplayViewedRequest{Type: MsgReplayViewed}
}

type ReplayNavRequest struct {
	Type string `json:"type"`
}

func NewRequestNextReplay() ReplayNavRequest {
	return ReplayNavRequest{Type: MsgRequestNextReplay}
}

func NewRequestPreviousReplay() ReplayNavRequest {
	return ReplayNavRequest{Type: MsgRequestPreviousReplay}
}

func NewRequestReplayList() ReplayNavRequest {
	return ReplayNavRequest{Type: MsgRequestReplayList}
}

type ReplayByIndexRequest struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

func NewRequestReplayByIndex(index int) ReplayByIndexRequest {
	return ReplayByIndexRequest{Type: MsgRequestReplayByIndex, Index: index}
}
