package trading

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Config holds the trading tunables. The grace delay deliberately comes
// from configuration: nothing in the protocol depends on its exact
// length, it only opens a cancel window between mutual confirmation and
// execution.
type Config struct {
	MaxTradeAmount int64
	MaxItems       int
	MaxPets        int
	MaxFumos       int

	GraceDelay    time.Duration
	InviteTimeout time.Duration
	IdleTimeout   time.Duration
	MaxSessionAge time.Duration
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxTradeAmount: 1_000_000,
		MaxItems:       10,
		MaxPets:        3,
		MaxFumos:       10,
		GraceDelay:     10 * time.Second,
		InviteTimeout:  2 * time.Minute,
		IdleTimeout:    10 * time.Minute,
		MaxSessionAge:  time.Hour,
		SweepInterval:  30 * time.Second,
	}
}

// Notifier receives the trade outcomes that happen outside a direct
// command reply: timer-driven settlement and janitor expiry. The Discord
// layer implements it; a nil notifier is allowed.
type Notifier interface {
	TradeCompleted(s *Session)
	TradeFailed(s *Session, err error)
	TradeExpired(s *Session)
	TradeCancelled(s *Session, byUserID string)
}

// Manager owns every live trade session and is the only writer of session
// state. A single mutex serializes transitions, mirroring the
// one-event-at-a-time model the protocol assumes; concurrent trades
// between disjoint pairs only contend on the map accesses.
type Manager struct {
	cfg       Config
	store     *SessionStore
	reader    StoreReader
	validator *Validator
	settler   Settler
	notifier  Notifier

	mu     sync.Mutex
	timers map[string]*time.Timer

	now func() time.Time
}

func NewManager(cfg Config, store *SessionStore, reader StoreReader, settler Settler) *Manager {
	return &Manager{
		cfg:       cfg,
		store:     store,
		reader:    reader,
		validator: NewValidator(reader),
		settler:   settler,
		timers:    make(map[string]*time.Timer),
		now:       time.Now,
	}
}

func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

// Propose creates a PENDING_INVITE session between two users. The caller
// performs the chat-side checks; the manager enforces the protocol ones:
// no self trade, no bot counterpart, neither party already trading.
func (m *Manager) Propose(proposerID, proposerName, targetID, targetName string, targetIsBot bool) (*Session, error) {
	if proposerID == targetID {
		return nil, ErrSelfTrade
	}
	if targetIsBot {
		return nil, ErrBotAccount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := newSession(proposerID, proposerName, targetID, targetName, m.now())
	if err := m.store.Put(s); err != nil {
		return nil, err
	}

	slog.Info("Trade invite created",
		slog.String("type", "trade"),
		slog.String("key", s.Key),
		slog.String("proposer_id", proposerID),
		slog.String("target_id", targetID))
	return s, nil
}

// AcceptInvite moves PENDING_INVITE to ACTIVE. Only the invited party may
// accept.
func (m *Manager) AcceptInvite(key, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.store.Get(key)
	if !ok {
		return nil, ErrTradeNotFound
	}
	if s.SideB.UserID != userID {
		return nil, ErrNotParticipant
	}
	if s.State != StatePendingInvite {
		return nil, ErrInvalidState
	}

	s.State = StateActive
	s.touch(m.now())
	return s, nil
}

// Cancel terminates the session from any pre-COMPLETED state. Decline of
// an invite, explicit cancel and the grace-window abort all route here.
func (m *Manager) Cancel(key, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.store.Get(key)
	if !ok {
		return nil, ErrTradeNotFound
	}
	if s.Side(userID) == nil {
		return nil, ErrNotParticipant
	}

	m.terminate(s, StateCancelled)
	slog.Info("Trade cancelled",
		slog.String("type", "trade"),
		slog.String("key", key),
		slog.String("by", userID))
	if m.notifier != nil {
		m.notifier.TradeCancelled(s, userID)
	}
	return s, nil
}

// UpdateCurrency sets one currency amount on the caller's side. Zero
// clears the entry. The amount is advisorily checked against the live
// balance so the user finds out now rather than at settlement.
func (m *Manager) UpdateCurrency(ctx context.Context, key, userID string, version int64, kind Currency, amount int64) (*Session, error) {
	return m.mutate(key, userID, version, func(s *Session, side *OfferSide) error {
		if amount < 0 || amount > m.cfg.MaxTradeAmount {
			return ErrInvalidAmount
		}
		if amount == 0 {
			delete(side.Currency, kind)
			return nil
		}
		balances, err := m.reader.GetBalances(ctx, userID)
		if err != nil {
			return err
		}
		if have := balances[kind]; have < amount {
			return &InsufficientError{UserID: userID, Resource: string(kind), Have: have, Need: amount}
		}
		side.Currency[kind] = amount
		return nil
	})
}

// UpdateItem sets one item quantity on the caller's side. Zero removes
// the entry; adding a new item past the per-trade cap is rejected, but
// existing entries may always be updated.
func (m *Manager) UpdateItem(ctx context.Context, key, userID string, version int64, itemID string, quantity int64) (*Session, error) {
	return m.mutate(key, userID, version, func(s *Session, side *OfferSide) error {
		if quantity < 0 {
			return ErrInvalidAmount
		}
		if quantity == 0 {
			delete(side.Items, itemID)
			return nil
		}
		if _, exists := side.Items[itemID]; !exists && len(side.Items) >= m.cfg.MaxItems {
			return ErrMaxItemsReached
		}
		have, err := m.reader.GetItemQuantity(ctx, userID, itemID)
		if err != nil {
			return err
		}
		if have < quantity {
			return &InsufficientError{UserID: userID, Resource: itemID, Have: have, Need: quantity}
		}
		side.Items[itemID] = quantity
		return nil
	})
}

// AddPet pledges a pet; RemovePet withdraws it. Pets are atomic, there is
// no quantity.
func (m *Manager) AddPet(ctx context.Context, key, userID string, version int64, pet PetSnapshot) (*Session, error) {
	return m.mutate(key, userID, version, func(s *Session, side *OfferSide) error {
		if _, exists := side.Pets[pet.PetID]; !exists && len(side.Pets) >= m.cfg.MaxPets {
			return ErrMaxPetsReached
		}
		owned, err := m.reader.OwnsPet(ctx, userID, pet.PetID)
		if err != nil {
			return err
		}
		if !owned {
			return &PetNotFoundError{UserID: userID, PetID: pet.PetID}
		}
		side.Pets[pet.PetID] = pet
		return nil
	})
}

func (m *Manager) RemovePet(key, userID string, version int64, petID int64) (*Session, error) {
	return m.mutate(key, userID, version, func(s *Session, side *OfferSide) error {
		delete(side.Pets, petID)
		return nil
	})
}

// UpdateFumo sets one fumo quantity on the caller's side. The quantity is
// clamped to what the live store currently shows (and to maxQuantity when
// the caller supplies one), so a stale UI can never pledge more than the
// user owns. Clamping to zero removes the entry.
func (m *Manager) UpdateFumo(ctx context.Context, key, userID string, version int64, name string, quantity, maxQuantity int64) (*Session, error) {
	return m.mutate(key, userID, version, func(s *Session, side *OfferSide) error {
		if quantity < 0 {
			return ErrInvalidAmount
		}
		if quantity == 0 {
			delete(side.Fumos, name)
			return nil
		}
		if _, exists := side.Fumos[name]; !exists && len(side.Fumos) >= m.cfg.MaxFumos {
			return ErrMaxFumosReached
		}

		owned, err := m.validator.ownedFumoTotal(ctx, userID, name)
		if err != nil {
			return err
		}
		clamped := quantity
		if maxQuantity > 0 && clamped > maxQuantity {
			clamped = maxQuantity
		}
		if clamped > owned {
			clamped = owned
		}
		if clamped <= 0 {
			delete(side.Fumos, name)
			return nil
		}
		side.Fumos[name] = clamped
		return nil
	})
}

// mutate runs one offer mutation under the session lock. Every successful
// mutation resets both sides' consent and bumps version/lastUpdate.
func (m *Manager) mutate(key, userID string, version int64, fn func(*Session, *OfferSide) error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.store.Get(key)
	if !ok {
		return nil, ErrTradeNotFound
	}
	side := s.Side(userID)
	if side == nil {
		return nil, ErrNotParticipant
	}
	if s.State != StateActive && s.State != StateBothAccepted {
		return nil, ErrInvalidState
	}
	if version != 0 && version != s.Version {
		return nil, ErrVersionMismatch
	}

	if err := fn(s, side); err != nil {
		return nil, err
	}

	s.resetConsent()
	s.touch(m.now())
	return s, nil
}

// ToggleAccept flips the caller's accepted flag. Permitted only while the
// offer is negotiable.
func (m *Manager) ToggleAccept(key, userID string, version int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.store.Get(key)
	if !ok {
		return nil, ErrTradeNotFound
	}
	side := s.Side(userID)
	if side == nil {
		return nil, ErrNotParticipant
	}
	if s.State != StateActive && s.State != StateBothAccepted {
		return nil, ErrInvalidState
	}
	if version != 0 && version != s.Version {
		return nil, ErrVersionMismatch
	}

	side.Accepted = !side.Accepted
	if !side.Accepted {
		// Withdrawing acceptance also withdraws any confirmation.
		side.Confirmed = false
	}
	s.deriveConsentState()
	s.touch(m.now())
	return s, nil
}

// ToggleConfirm flips the caller's confirmed flag. Only legal once both
// sides have accepted; the instant both sides are confirmed the session
// moves to CONFIRMING and the grace timer is armed. Either party may
// retract until that instant.
func (m *Manager) ToggleConfirm(key, userID string, version int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.store.Get(key)
	if !ok {
		return nil, ErrTradeNotFound
	}
	side := s.Side(userID)
	if side == nil {
		return nil, ErrNotParticipant
	}
	if s.State != StateBothAccepted {
		return nil, ErrNotBothAccepted
	}
	if version != 0 && version != s.Version {
		return nil, ErrVersionMismatch
	}

	side.Confirmed = !side.Confirmed
	s.touch(m.now())

	if s.SideA.Confirmed && s.SideB.Confirmed {
		s.State = StateConfirming
		m.armSettlement(s.Key)
	}
	return s, nil
}

func (m *Manager) armSettlement(key string) {
	if t, ok := m.timers[key]; ok {
		t.Stop()
	}
	m.timers[key] = time.AfterFunc(m.cfg.GraceDelay, func() {
		m.Settle(context.Background(), key)
	})
}

// Settle executes a mutually confirmed trade. It re-validates both sides
// against the live store first: the grace delay means balances may have
// changed since confirmation, so the consent flags alone are never
// trusted.
//
// The manager mutex is held across the whole settlement transaction:
// mutations on every session block until it commits.
func (m *Manager) Settle(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.store.Get(key)
	if !ok {
		return ErrTradeNotFound
	}
	if s.State != StateConfirming {
		return ErrInvalidState
	}

	for _, side := range []*OfferSide{s.SideA, s.SideB} {
		if err := m.validator.Validate(ctx, side); err != nil {
			// No writes happened. Drop back to BOTH_ACCEPTED so the
			// parties can fix the offer or walk away.
			s.State = StateBothAccepted
			s.SideA.Confirmed = false
			s.SideB.Confirmed = false
			s.touch(m.now())
			slog.Warn("Trade settlement rejected by validation",
				slog.String("type", "trade"),
				slog.String("key", key),
				slog.String("side", side.UserID),
				slog.Any("error", err))
			if m.notifier != nil {
				m.notifier.TradeFailed(s, err)
			}
			return err
		}
	}

	plan, err := BuildPlan(ctx, m.reader, s)
	if err != nil {
		s.State = StateBothAccepted
		s.SideA.Confirmed = false
		s.SideB.Confirmed = false
		s.touch(m.now())
		if m.notifier != nil {
			m.notifier.TradeFailed(s, err)
		}
		return err
	}

	if err := m.settler.Settle(ctx, s, plan); err != nil {
		// The transaction could not be applied atomically. Terminal for
		// this session: no partial effects persisted, no retry.
		serr := &SettlementError{Key: key, Err: err}
		m.terminate(s, StateCancelled)
		slog.Error("Trade settlement transaction failed",
			slog.String("type", "trade"),
			slog.String("key", key),
			slog.Any("error", err))
		if m.notifier != nil {
			m.notifier.TradeFailed(s, serr)
		}
		return serr
	}

	m.terminate(s, StateCompleted)
	slog.Info("Trade settled",
		slog.String("type", "trade"),
		slog.String("key", key),
		slog.String("plan", planSummary(plan)))
	if m.notifier != nil {
		m.notifier.TradeCompleted(s)
	}
	return nil
}

// terminate moves the session to a terminal state, disarms any pending
// settlement timer and releases both trading slots. Callers hold m.mu.
func (m *Manager) terminate(s *Session, state State) {
	s.State = state
	s.touch(m.now())
	if t, ok := m.timers[s.Key]; ok {
		t.Stop()
		delete(m.timers, s.Key)
	}
	m.store.Delete(s.Key)
}

// GraceDelay exposes the configured cancel window, for rendering.
func (m *Manager) GraceDelay() time.Duration {
	return m.cfg.GraceDelay
}

// Session returns the live session for a key, for rendering.
func (m *Manager) Session(key string) (*Session, bool) {
	return m.store.Get(key)
}

// SessionFor returns the live session a user is a party to, if any.
func (m *Manager) SessionFor(userID string) (*Session, bool) {
	return m.store.GetByUser(userID)
}
