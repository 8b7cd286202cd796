package session

import "context"

// Subscribe registers an event outbox under id. The channel closes when
// the subscriber is dropped, unsubscribed, or the session shuts down.
func (s *Session) Subscribe(id string) <-chan Event {
	out := make(chan Event, 32)
	select {
	case s.inbox <- subscribe{id: id, outbox: out}:
	case <-s.ctx.Done():
		close(out)
	}
	return out
}

func (s *Session) Unsubscribe(id string) {
	select {
	case s.inbox <- unsubscribe{id: id}:
	case <-s.ctx.Done():
	}
}

// Shutdown stops the loop and closes all subscriber channels.
func (s *Session) Shutdown() { s.cancel() }

// roundtrip posts a request to the loop and waits for its reply.
func (s *Session) roundtrip(ctx context.Context, m msg, reply <-chan error) error {
	select {
	case s.inbox <- m:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// wait posts a fire-and-forget control and blocks until the loop has
// processed it, which keeps controls like seek synchronous.
func (s *Session) wait(ctx context.Context, m msg, done <-chan struct{}) error {
	select {
	case s.inbox <- m:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// Connect sends the initial connect message carrying the client token.
func (s *Session) Connect(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.roundtrip(ctx, connectReq{reply: reply}, reply)
}

// Disconnect notifies the server, fails all pending transactions and
// moves the session to the disconnected phase.
func (s *Session) Disconnect(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.roundtrip(ctx, disconnectReq{reply: reply}, reply)
}

// PurchaseOption requests a purchase; the pending transaction is
// recorded only once the request is actually on the wire.
func (s *Session) PurchaseOption(ctx context.Context, optionID string, autoEquip bool) error {
	reply := make(chan error, 1)
	return s.roundtrip(ctx, purchaseReq{optionID: optionID, autoEquip: autoEquip, reply: reply}, reply)
}

func (s *Session) RefreshShop(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.roundtrip(ctx, refreshReq{reply: reply}, reply)
}

func (s *Session) SellItem(ctx context.Context, itemID string) error {
	reply := make(chan error, 1)
	return s.roundtrip(ctx, sellReq{itemID: itemID, reply: reply}, reply)
}

func (s *Session) RequestOptions(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.roundtrip(ctx, requestOptionsReq{reply: reply}, reply)
}

func (s *Session) RequestPurchases(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.roundtrip(ctx, requestPurchasesReq{reply: reply}, reply)
}

func (s *Session) ShopPhaseComplete(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.roundtrip(ctx, shopCompleteReq{reply: reply}, reply)
}

func (s *Session) ReplayViewed(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.roundtrip(ctx, replayViewedReq{reply: reply}, reply)
}

func (s *Session) NextReplay(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.roundtrip(ctx, replayNavReq{next: true, reply: reply}, reply)
}

func (s *Session) PreviousReplay(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.roundtrip(ctx, replayNavReq{next: false, reply: reply}, reply)
}

// RequestReplayList asks the server for the batch replay index; the
// answer arrives as a ReplayList event.
func (s *Session) RequestReplayList(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.roundtrip(ctx, replayListReq{reply: reply}, reply)
}

// RequestReplayByIndex asks the server to re-send a specific replay from
// the current batch.
func (s *Session) RequestReplayByIndex(ctx context.Context, index int) error {
	reply := make(chan error, 1)
	return s.roundtrip(ctx, replayByIndexReq{index: index, reply: reply}, reply)
}

// Playback controls.

func (s *Session) Play(ctx context.Context) error {
	done := make(chan struct{})
	return s.wait(ctx, playReq{done: done}, done)
}

func (s *Session) Pause(ctx context.Context) error {
	done := make(chan struct{})
	return s.wait(ctx, pauseReq{done: done}, done)
}

func (s *Session) StopPlayback(ctx context.Context) error {
	done := make(chan struct{})
	return s.wait(ctx, stopReq{done: done}, done)
}

// Seek jumps to frame n and emits that frame before returning.
func (s *Session) Seek(ctx context.Context, n int) error {
	done := make(chan struct{})
	return s.wait(ctx, seekReq{n: n, done: done}, done)
}

// SetSpeed applies a clamped playback speed and returns the value that
// took effect.
func (s *Session) SetSpeed(ctx context.Context, v float64) (float64, error) {
	reply := make(chan float64, 1)
	select {
	case s.inbox <- speedReq{v: v, reply: reply}:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.ctx.Done():
		return 0, s.ctx.Err()
	}
	select {
	case applied := <-reply:
		return applied, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.ctx.Done():
		return 0, s.ctx.Err()
	}
}

// Status snapshots session state on the loop, so readers never race it.
func (s *Session) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	select {
	case s.inbox <- statusReq{reply: reply}:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case <-s.ctx.Done():
		return Status{}, s.ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case <-s.ctx.Done():
		return Status{}, s.ctx.Err()
	}
}
