package protocol

// Phase is a named stage of the match lifecycle the client can be in.
type Phase string

const (
	PhaseConnecting       Phase = "connecting"
	PhaseMatchmaking      Phase = "matchmaking"
	PhaseFighterSelection Phase = "fighter_selection"
	PhaseShop             Phase = "shop"
	PhaseFighting         Phase = "fighting"
	PhaseReplayViewing    Phase = "replay_viewing"
	PhaseDisconnected     Phase = "disconnected"
)

// Outcome classifies what a message did to the phase machine.
type Outcome int

const (
	// Accepted means the message is legal for the current phase. The
	// phase may or may not have changed.
	Accepted Outcome = iota
	// Ignored means the type is known but has no entry for the current
	// phase. Tolerated, never an error.
	Ignored
	// Rejected means the type is not part of the protocol at all.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Ignored:
		return "ignored"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// TransitionResult is the verdict for one inbound message type.
type TransitionResult struct {
	Outcome Outcome
	Phase   Phase  // phase after handling; unchanged unless Accepted
	Reason  string // set when Rejected
}

// statusTypes never change phase, whatever the client is doing.
var statusTypes = map[string]bool{
	MsgStatus:             true,
	MsgError:              true,
	MsgWaitingForOpponent: true,
	MsgOpponentReady:      true,
	MsgOpponentConnected:  true,
	MsgPurchasesList:      true,
	MsgConnectionError:    true,
}

// transitions maps current phase -> accepted message type -> next phase.
// Entries that map back to the same phase are legal no-change rows.
var transitions = map[Phase]map[string]Phase{
	PhaseConnecting: {
		MsgConnected: PhaseMatchmaking,
	},
	PhaseMatchmaking: {
		MsgMatchmakingStarted:    PhaseMatchmaking,
		MsgMatchFound:            PhaseMatchmaking,
		MsgFighterSelectionReady: PhaseFighterSelection,
		MsgInitialShopReady:      PhaseShop,
	},
	PhaseFighterSelection: {
		MsgOptions:        PhaseFighterSelection,
		MsgPurchaseResult: PhaseFighterSelection,
		MsgShopPhaseStart: PhaseShop,
		MsgFightStarting:  PhaseFighting,
	},
	PhaseShop: {
		MsgShopPhaseStart: PhaseShop,
		MsgOptions:        PhaseShop,
		MsgPurchaseResult: PhaseShop,
		MsgRefreshResult:  PhaseShop,
		MsgSellResult:     PhaseShop,
		MsgFightStarting:  PhaseFighting,
	},
	PhaseFighting: {
		MsgFightStarting:  PhaseFighting,
		MsgBatchCompleted: PhaseFighting,
		MsgReplayData:     PhaseReplayViewing,
	},
	PhaseReplayViewing: {
		MsgReplayData:     PhaseReplayViewing,
		MsgReplayNext:     PhaseReplayViewing,
		MsgReplayPrevious: PhaseReplayViewing,
		MsgReplayList:     PhaseReplayViewing,
		MsgShopPhaseStart: PhaseShop,
	},
	PhaseDisconnected: {
		MsgConnected: PhaseMatchmaking,
	},
}

// knownServerTypes is every type the server may legitimately send.
// Anything outside this set is Rejected.
var knownServerTypes = func() map[string]bool {
	known := map[string]bool{
		MsgOpponentDisconnected: true,
		MsgDisconnected:         true,
	}
	for t := range statusTypes {
		known[t] = true
	}
	for _, row := range transitions {
		for t := range row {
			known[t] = true
		}
	}
	return known
}()

// PhaseMachine tracks the current phase and validates transitions. Pure
// state: it performs no I/O and has no side effects beyond the stored
// phase.
type PhaseMachine struct {
	phase Phase
}

func NewPhaseMachine() *PhaseMachine {
	return &PhaseMachine{phase: PhaseConnecting}
}

// Phase returns the current phase.
func (m *PhaseMachine) Phase() Phase { return m.phase }

// Handle applies one inbound message type to the machine.
func (m *PhaseMachine) Handle(msgType string) TransitionResult {
	if !knownServerTypes[msgType] {
		return TransitionResult{Outcome: Rejected, Phase: m.phase, Reason: "unknown message type: " + msgType}
	}

	switch msgType {
	case MsgOpponentDisconnected:
		// Recovery transition: back to matchmaking from anywhere so the
		// server can pair us again.
		m.phase = PhaseMatchmaking
		return TransitionResult{Outcome: Accepted, Phase: m.phase}
	case MsgDisconnected:
		m.phase = PhaseDisconnected
		return TransitionResult{Outcome: Accepted, Phase: m.phase}
	}

	if statusTypes[msgType] {
		return TransitionResult{Outcome: Accepted, Phase: m.phase}
	}

	next, ok := transitions[m.phase][msgType]
	if !ok {
		return TransitionResult{Outcome: Ignored, Phase: m.phase}
	}
	m.phase = next
	return TransitionResult{Outcome: Accepted, Phase: next}
}
