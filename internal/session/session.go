// Package session orchestrates the match protocol: it owns the phase
// machine, routes inbound payloads to the replay codec, playback
// scheduler and shop tracker, and turns user intent into outbound
// requests. All mutation happens on one loop goroutine.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jspeir/arenaclient/internal/playback"
	"github.com/jspeir/arenaclient/internal/protocol"
	"github.com/jspeir/arenaclient/internal/replay"
	"github.com/jspeir/arenaclient/internal/shop"
	"github.com/jspeir/arenaclient/internal/transport"
)

type EventType string

const (
	EvtPhaseChanged        EventType = "PhaseChanged"
	EvtConnected           EventType = "Connected"
	EvtMatchFound          EventType = "MatchFound"
	EvtFightStarting       EventType = "FightStarting"
	EvtBatchCompleted      EventType = "BatchCompleted"
	EvtShopUpdated         EventType = "ShopUpdated"
	EvtTransactionResolved EventType = "TransactionResolved"
	EvtReplayLoaded        EventType = "ReplayLoaded"
	EvtReplayList          EventType = "ReplayList"
	EvtFrameAdvanced       EventType = "FrameAdvanced"
	EvtReplayFinished      EventType = "ReplayFinished"
	EvtError               EventType = "Error"
	EvtDisconnected        EventType = "Disconnected"
)

// Event is what collaborators (UI panels, bots, the debug surface)
// receive. Only the fields relevant to Type are set.
type Event struct {
	Type  EventType
	Phase protocol.Phase

	FrameIndex int
	Frame      *replay.Frame
	Metadata   *replay.Metadata

	ReplayIndex  int
	TotalReplays int
	Replays      []protocol.ReplaySummary

	Gold        int
	Offers      []protocol.Offer
	Transaction *shop.PendingTransaction
	Success     bool

	Batch    *protocol.BatchCompleted
	Opponent string

	Message   string
	ErrorCode string
}

// PlaybackStatus is a read-only view of the scheduler for the debug
// surface.
type PlaybackStatus struct {
	State       string  `json:"state"`
	Frame       int     `json:"frame"`
	TotalFrames int     `json:"total_frames"`
	Speed       float64 `json:"speed"`
}

// Status is a consistent snapshot of the session, taken on the loop.
type Status struct {
	Phase               protocol.Phase   `json:"phase"`
	ClientID            string           `json:"client_id"`
	Gold                int              `json:"gold"`
	RefreshCost         int              `json:"refresh_cost"`
	Offers              []protocol.Offer `json:"offers"`
	PendingTransactions int              `json:"pending_transactions"`
	ReplayIndex         int              `json:"replay_index"`
	TotalReplays        int              `json:"total_replays"`
	Playback            PlaybackStatus   `json:"playback"`
}

type msg interface{ isSessionMsg() }

type subscribe struct {
	id     string
	outbox chan Event
}

type unsubscribe struct{ id string }

type connectReq struct{ reply chan error }
type disconnectReq struct{ reply chan error }
type purchaseReq struct {
	optionID  string
	autoEquip bool
	reply     chan error
}
type refreshReq struct{ reply chan error }
type sellReq struct {
	itemID string
	reply  chan error
}
type requestOptionsReq struct{ reply chan error }
type requestPurchasesReq struct{ reply chan error }
type shopCompleteReq struct{ reply chan error }
type replayViewedReq struct{ reply chan error }
type replayNavReq struct {
	next  bool
	reply chan error
}
type replayListReq struct{ reply chan error }
type replayByIndexReq struct {
	index int
	reply chan error
}

type playReq struct{ done chan struct{} }
type pauseReq struct{ done chan struct{} }
type stopReq struct{ done chan struct{} }
type seekReq struct {
	n    int
	done chan struct{}
}
type speedReq struct {
	v     float64
	reply chan float64
}
type statusReq struct{ reply chan Status }

func (subscribe) isSessionMsg()           {}
func (unsubscribe) isSessionMsg()         {}
func (connectReq) isSessionMsg()          {}
func (disconnectReq) isSessionMsg()       {}
func (purchaseReq) isSessionMsg()         {}
func (refreshReq) isSessionMsg()          {}
func (sellReq) isSessionMsg()             {}
func (requestOptionsReq) isSessionMsg()   {}
func (requestPurchasesReq) isSessionMsg() {}
func (shopCompleteReq) isSessionMsg()     {}
func (replayViewedReq) isSessionMsg()     {}
func (replayNavReq) isSessionMsg()        {}
func (replayListReq) isSessionMsg()       {}
func (replayByIndexReq) isSessionMsg()    {}
func (playReq) isSessionMsg()             {}
func (pauseReq) isSessionMsg()            {}
func (stopReq) isSessionMsg()             {}
func (seekReq) isSessionMsg()             {}
func (speedReq) isSessionMsg()            {}
func (statusReq) isSessionMsg()           {}

// Session is the protocol orchestrator. Exactly one loop goroutine
// touches its fields.
type Session struct {
	inbox   chan msg
	tr      transport.Transport
	logger  *zap.Logger
	machine *protocol.PhaseMachine
	sched   *playback.Scheduler
	tracker *shop.Tracker

	clientID string
	subs     map[string]chan Event

	currentMeta  *replay.Metadata
	replayIndex  int
	totalReplays int

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a session around a transport and starts its loop. The
// client identity is a random token, replaced by the server-assigned id
// on the connected ack.
func New(parent context.Context, tr transport.Transport, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		inbox:    make(chan msg, 64),
		tr:       tr,
		logger:   logger,
		machine:  protocol.NewPhaseMachine(),
		sched:    playback.NewScheduler(),
		tracker:  shop.NewTracker(),
		clientID: uuid.NewString(),
		subs:     make(map[string]chan Event),
		ctx:      ctx,
		cancel:   cancel,
	}
	go s.loop()
	return s
}

func (s *Session) loop() {
	ticker := time.NewTicker(playback.FrameDuration)
	defer ticker.Stop()

	msgs := s.tr.Messages()
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case data, ok := <-msgs:
			if !ok {
				s.onTransportClosed()
				msgs = nil // stop selecting on the closed channel
				continue
			}
			s.handleInbound(data)

		case now := <-ticker.C:
			s.emitPlayback(s.sched.Tick(now))

		case m := <-s.inbox:
			s.handleMsg(m)
		}
	}
}

func (s *Session) handleMsg(m msg) {
	switch m := m.(type) {
	case subscribe:
		s.subs[m.id] = m.outbox

	case unsubscribe:
		if ch, ok := s.subs[m.id]; ok {
			close(ch)
			delete(s.subs, m.id)
		}

	case connectReq:
		m.reply <- s.tr.Send(s.ctx, protocol.NewConnect(s.clientID))

	case disconnectReq:
		err := s.tr.Send(s.ctx, protocol.NewDisconnect())
		s.failPending()
		res := s.machine.Handle(protocol.MsgDisconnected)
		s.emit(Event{Type: EvtDisconnected, Phase: res.Phase})
		m.reply <- err

	case purchaseReq:
		err := s.tr.Send(s.ctx, protocol.NewPurchaseOption(m.optionID, m.autoEquip))
		if err == nil {
			cost, _ := s.tracker.OfferCost(m.optionID)
			s.tracker.Record(shop.TxPurchase, m.optionID, cost)
		}
		m.reply <- err

	case refreshReq:
		err := s.tr.Send(s.ctx, protocol.NewRefreshShop())
		if err == nil {
			s.tracker.Record(shop.TxRefresh, "", s.tracker.RefreshCost())
		}
		m.reply <- err

	case sellReq:
		err := s.tr.Send(s.ctx, protocol.NewSellItem(m.itemID))
		if err == nil {
			s.tracker.Record(shop.TxSell, m.itemID, 0)
		}
		m.reply <- err

	case requestOptionsReq:
		m.reply <- s.tr.Send(s.ctx, protocol.NewRequestOptions())

	case requestPurchasesReq:
		m.reply <- s.tr.Send(s.ctx, protocol.NewRequestPurchases())

	case shopCompleteReq:
		m.reply <- s.tr.Send(s.ctx, protocol.NewShopPhaseComplete())

	case replayViewedReq:
		m.reply <- s.tr.Send(s.ctx, protocol.NewReplayViewed())

	case replayNavReq:
		if m.next {
			m.reply <- s.tr.Send(s.ctx, protocol.NewRequestNextReplay())
		} else {
			m.reply <- s.tr.Send(s.ctx, protocol.NewRequestPreviousReplay())
		}

	case replayListReq:
		m.reply <- s.tr.Send(s.ctx, protocol.NewRequestReplayList())

	case replayByIndexReq:
		m.reply <- s.tr.Send(s.ctx, protocol.NewRequestReplayByIndex(m.index))

	case playReq:
		s.sched.Play(time.Now())
		close(m.done)

	case pauseReq:
		s.sched.Pause()
		close(m.done)

	case stopReq:
		s.sched.Stop()
		close(m.done)

	case seekReq:
		s.emitPlayback(s.sched.Seek(m.n))
		close(m.done)

	case speedReq:
		m.reply <- s.sched.SetSpeed(m.v)

	case statusReq:
		m.reply <- s.status()
	}
}

// handleInbound runs one server message through decode, the phase
// machine, and payload dispatch. Any failure discards that one message;
// the session continues.
func (s *Session) handleInbound(data []byte) {
	in, err := protocol.Decode(data)
	if err != nil {
		s.logger.Warn("dropping malformed message", zap.Error(err))
		return
	}

	before := s.machine.Phase()
	res := s.machine.Handle(in.Type)
	switch res.Outcome {
	case protocol.Rejected:
		s.logger.Warn("rejected message", zap.String("type", in.Type), zap.String("reason", res.Reason))
		s.emit(Event{Type: EvtError, Phase: res.Phase, Message: res.Reason})
		return
	case protocol.Ignored:
		s.logger.Debug("message has no transition for current phase",
			zap.String("type", in.Type), zap.String("phase", string(before)))
	}

	if res.Outcome == protocol.Accepted && res.Phase != before {
		s.emit(Event{Type: EvtPhaseChanged, Phase: res.Phase})
	}
	s.dispatch(in, res.Phase)
}

func (s *Session) dispatch(in protocol.Inbound, phase protocol.Phase) {
	switch in.Type {
	case protocol.MsgConnected:
		p := in.Payload.(*protocol.Connected)
		if p.ClientID != "" {
			s.clientID = p.ClientID
		}
		s.emit(Event{Type: EvtConnected, Phase: phase, Message: p.Message})

	case protocol.MsgMatchFound:
		p := in.Payload.(*protocol.MatchFound)
		s.emit(Event{Type: EvtMatchFound, Phase: phase, Opponent: p.OpponentID, Message: p.Message})

	case protocol.MsgFightStarting:
		p := in.Payload.(*protocol.FightStarting)
		s.emit(Event{Type: EvtFightStarting, Phase: phase, Opponent: p.Opponent, TotalReplays: p.TotalFights})

	case protocol.MsgBatchCompleted:
		p := in.Payload.(*protocol.BatchCompleted)
		s.emit(Event{Type: EvtBatchCompleted, Phase: phase, Batch: p})

	case protocol.MsgOptions, protocol.MsgShopPhaseStart:
		p := in.Payload.(*protocol.Options)
		s.tracker.SetOffers(p.Data, p.ClientGold, p.RefreshCost)
		s.emit(Event{Type: EvtShopUpdated, Phase: phase, Gold: s.tracker.Gold(), Offers: s.tracker.Offers()})

	case protocol.MsgPurchaseResult:
		p := in.Payload.(*protocol.PurchaseResult)
		tx, ok := s.tracker.ApplyPurchaseResult(p)
		if !ok {
			s.logger.Warn("purchase result with no pending transaction", zap.String("item", p.ItemID))
		}
		s.emitResolved(phase, tx, ok, p.Success, p.Reason)

	case protocol.MsgRefreshResult:
		p := in.Payload.(*protocol.RefreshResult)
		tx, ok := s.tracker.ApplyRefreshResult(p)
		if !ok {
			s.logger.Warn("refresh result with no pending transaction")
		}
		s.emitResolved(phase, tx, ok, p.Success, p.Message)
		if p.Success {
			s.emit(Event{Type: EvtShopUpdated, Phase: phase, Gold: s.tracker.Gold(), Offers: s.tracker.Offers()})
		}

	case protocol.MsgSellResult:
		p := in.Payload.(*protocol.SellResult)
		tx, ok := s.tracker.ApplySellResult(p)
		if !ok {
			s.logger.Warn("sell result with no pending transaction", zap.String("item", p.ItemID))
		}
		s.emitResolved(phase, tx, ok, p.Success, p.Message)

	case protocol.MsgStatus:
		s.tracker.ApplyStatus(in.Payload.(*protocol.StatusInfo))
		s.emit(Event{Type: EvtShopUpdated, Phase: phase, Gold: s.tracker.Gold(), Offers: s.tracker.Offers()})

	case protocol.MsgPurchasesList:
		s.tracker.ApplyPurchasesList(in.Payload.(*protocol.PurchasesList))

	case protocol.MsgReplayData, protocol.MsgReplayNext, protocol.MsgReplayPrevious:
		s.loadReplay(in.Payload.(*protocol.ReplayPayload), phase)

	case protocol.MsgReplayList:
		p := in.Payload.(*protocol.ReplayList)
		s.emit(Event{
			Type:         EvtReplayList,
			Phase:        phase,
			Replays:      p.Replays,
			ReplayIndex:  p.CurrentIndex,
			TotalReplays: p.TotalReplays,
		})

	case protocol.MsgError, protocol.MsgConnectionError:
		p := in.Payload.(*protocol.ErrorMessage)
		s.emit(Event{Type: EvtError, Phase: phase, Message: p.Message, ErrorCode: p.ErrorCode})

	case protocol.MsgOpponentDisconnected:
		s.failPending()
		s.emit(Event{Type: EvtError, Phase: phase, Message: "opponent disconnected"})

	case protocol.MsgDisconnected:
		s.failPending()
		s.emit(Event{Type: EvtDisconnected, Phase: phase})
	}
}

// loadReplay decodes and installs a replay payload. A decode failure
// aborts loading that replay only; whatever was playing stays intact.
func (s *Session) loadReplay(p *protocol.ReplayPayload, phase protocol.Phase) {
	rep, err := replay.Decode(p.ReplayData)
	if err != nil {
		s.logger.Warn("replay decode failed", zap.Int("index", p.ReplayIndex), zap.Error(err))
		s.emit(Event{Type: EvtError, Phase: phase, Message: "replay decode failed: " + err.Error()})
		return
	}
	s.sched.Load(rep.Frames)
	s.currentMeta = &rep.Metadata
	s.replayIndex = p.ReplayIndex
	s.totalReplays = p.TotalReplays
	s.emit(Event{
		Type:         EvtReplayLoaded,
		Phase:        phase,
		Metadata:     s.currentMeta,
		ReplayIndex:  p.ReplayIndex,
		TotalReplays: p.TotalReplays,
	})
	// Replays start playing as soon as they arrive; pausing is a user
	// action, not a default.
	s.sched.Play(time.Now())
}

func (s *Session) emitPlayback(events []playback.Event) {
	for _, ev := range events {
		switch ev.Type {
		case playback.EvtFrame:
			fr := ev.Frame
			s.emit(Event{Type: EvtFrameAdvanced, Phase: s.machine.Phase(), FrameIndex: ev.Index, Frame: &fr})
		case playback.EvtFinished:
			s.emit(Event{Type: EvtReplayFinished, Phase: s.machine.Phase(), FrameIndex: ev.Index})
			// Automatic progression: tell the server we are done so it
			// can send the next replay or the shop phase.
			if err := s.tr.Send(s.ctx, protocol.NewReplayViewed()); err != nil {
				s.logger.Warn("replay_viewed send failed", zap.Error(err))
			}
		}
	}
}

func (s *Session) emitResolved(phase protocol.Phase, tx shop.PendingTransaction, ok, success bool, detail string) {
	ev := Event{
		Type:    EvtTransactionResolved,
		Phase:   phase,
		Success: success,
		Gold:    s.tracker.Gold(),
		Message: detail,
	}
	if ok {
		ev.Transaction = &tx
	}
	s.emit(ev)
}

// failPending invalidates every pending transaction; they are surfaced
// as failed resolutions, never left dangling.
func (s *Session) failPending() {
	for _, tx := range s.tracker.InvalidateAll() {
		tx := tx
		s.emit(Event{
			Type:        EvtTransactionResolved,
			Phase:       s.machine.Phase(),
			Success:     false,
			Transaction: &tx,
			Gold:        s.tracker.Gold(),
			Message:     "disconnected before confirmation",
		})
	}
}

func (s *Session) onTransportClosed() {
	s.logger.Info("transport closed")
	s.failPending()
	res := s.machine.Handle(protocol.MsgDisconnected)
	s.emit(Event{Type: EvtDisconnected, Phase: res.Phase})
}

// emit broadcasts to every subscriber; a full outbox drops that
// subscriber rather than stalling the loop.
func (s *Session) emit(ev Event) {
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("dropping slow subscriber", zap.String("id", id))
			close(ch)
			delete(s.subs, id)
		}
	}
}

func (s *Session) status() Status {
	return Status{
		Phase:               s.machine.Phase(),
		ClientID:            s.clientID,
		Gold:                s.tracker.Gold(),
		RefreshCost:         s.tracker.RefreshCost(),
		Offers:              s.tracker.Offers(),
		PendingTransactions: s.tracker.Pending(),
		ReplayIndex:         s.replayIndex,
		TotalReplays:        s.totalReplays,
		Playback: PlaybackStatus{
			State:       s.sched.State().String(),
			Frame:       s.sched.Cursor(),
			TotalFrames: s.sched.Len(),
			Speed:       s.sched.Speed(),
		},
	}
}

func (s *Session) shutdown() {
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}
