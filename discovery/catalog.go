package discovery

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrUnknownPeer is returned by state mutations that name an address the
// catalog has never seen.
var ErrUnknownPeer = errors.New("peer not in catalog")

// Bridge is the adapter-facing side of the catalog: it controls the radio's
// discovery lifecycle and enumerates already-paired peers. Discovered
// batches flow back in through Catalog.MergeBatch, wired up by the caller.
type Bridge interface {
	StartDiscovery() error
	StopDiscovery() error
	PairedPeers() []PeerRecord
}

// Event types published to subscribers. Every event carries the full
// catalog snapshot; consumers reconcile the whole list, never a diff.
const (
	EventScanStarted    = "scan/started"
	EventScanStopped    = "scan/stopped"
	EventCatalogUpdated = "catalog/updated"
	EventStateChanged   = "device/state"
)

type Event struct {
	Type      string       `json:"type"`
	SessionID string       `json:"sessionId,omitempty"`
	Devices   []PeerRecord `json:"devices"`
}

// DefaultConnectDelay is how long a simulated handshake takes when no delay
// is configured.
const DefaultConnectDelay = 2 * time.Second

type connectAttempt struct {
	timer *time.Timer
}

// Catalog owns the canonical, de-duplicated set of discovered peers for the
// active or most recent scan session. All mutation is serialized behind one
// mutex; bridge callbacks may arrive on any goroutine.
type Catalog struct {
	bridge       Bridge
	connectDelay time.Duration

	mu          sync.Mutex
	peers       map[string]*PeerRecord
	order       []string
	scanning    bool
	sessionID   string
	subscribers []func(Event)
	pending     map[string]*connectAttempt
}

func NewCatalog(bridge Bridge, connectDelay time.Duration) *Catalog {
	if connectDelay <= 0 {
		connectDelay = DefaultConnectDelay
	}
	return &Catalog{
		bridge:       bridge,
		connectDelay: connectDelay,
		peers:        make(map[string]*PeerRecord),
		pending:      make(map[string]*connectAttempt),
	}
}

// Subscribe registers fn for all catalog events. Subscribers are invoked
// synchronously, outside the catalog lock, in registration order.
func (c *Catalog) Subscribe(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// StartScan begins a new discovery session. The catalog is cleared and any
// pending connect completions are cancelled. If the platform refuses to
// start discovery the session state and catalog are left untouched.
func (c *Catalog) StartScan() error {
	if err := c.bridge.StartDiscovery(); err != nil {
		log.Errorf("start discovery: %v", err)
		return err
	}

	session := uuid.NewString()

	c.mu.Lock()
	c.cancelAllLocked()
	c.peers = make(map[string]*PeerRecord)
	c.order = nil
	c.sessionID = session
	c.scanning = true
	emit := c.eventLocked(EventScanStarted)
	c.mu.Unlock()

	log.Infof("scan session %s started", session)
	emit()
	return nil
}

// StopScan ends the discovery session and retains the catalog as-is. Safe
// to call when already idle. The session always transitions to idle, even
// when the platform stop fails; the radio may already be off.
func (c *Catalog) StopScan() error {
	err := c.bridge.StopDiscovery()
	if err != nil {
		log.Errorf("stop discovery: %v", err)
	}

	c.mu.Lock()
	wasScanning := c.scanning
	c.scanning = false
	emit := func() {}
	if wasScanning {
		emit = c.eventLocked(EventScanStopped)
	}
	c.mu.Unlock()

	emit()
	return err
}

// Scanning reports whether a discovery session is active.
func (c *Catalog) Scanning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanning
}

// Refresh merges the platform's already-paired peers into the catalog and
// emits one update. It does not require or affect an active scan session.
func (c *Catalog) Refresh() {
	paired := c.bridge.PairedPeers()
	c.MergeBatch(paired)
	log.Infof("refresh merged %d paired peers, catalog size %d", len(paired), len(c.Snapshot()))
}

// MergeBatch folds one batch of sightings into the catalog. A record whose
// address is already known replaces every field except ConnectionState; a
// new address is inserted disconnected. Exactly one event is emitted per
// batch, carrying the full catalog.
func (c *Catalog) MergeBatch(records []PeerRecord) {
	c.mu.Lock()
	for _, rec := range records {
		if rec.ID == "" {
			log.Debug("dropping sighting with empty address")
			continue
		}
		if rec.DisplayName == "" {
			rec.DisplayName = UnknownName
		}
		if rec.PairState == "" {
			rec.PairState = PairUnknown
		}
		if existing, ok := c.peers[rec.ID]; ok {
			rec.ConnectionState = existing.ConnectionState
			*existing = rec
		} else {
			rec.ConnectionState = StateDisconnected
			inserted := rec
			c.peers[rec.ID] = &inserted
			c.order = append(c.order, rec.ID)
		}
	}
	emit := c.eventLocked(EventCatalogUpdated)
	c.mu.Unlock()

	emit()
}

// SetConnectionState mutates a catalog entry's connection state without
// touching the adapter. Unknown addresses are surfaced as ErrUnknownPeer
// rather than silently dropped.
func (c *Catalog) SetConnectionState(id string, state ConnectionState) error {
	c.mu.Lock()
	p, ok := c.peers[id]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownPeer
	}
	p.ConnectionState = state
	emit := c.eventLocked(EventStateChanged)
	c.mu.Unlock()

	emit()
	return nil
}

// Connect starts a simulated handshake with the peer: the entry moves to
// connecting now and to connected after the configured delay. A second
// Connect for the same address supersedes the first; Disconnect or a new
// scan session cancels the pending completion.
func (c *Catalog) Connect(id string) error {
	c.mu.Lock()
	p, ok := c.peers[id]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownPeer
	}
	c.cancelLocked(id)
	p.ConnectionState = StateConnecting
	attempt := &connectAttempt{}
	c.pending[id] = attempt
	attempt.timer = time.AfterFunc(c.connectDelay, func() {
		c.completeConnect(id, attempt)
	})
	emit := c.eventLocked(EventStateChanged)
	c.mu.Unlock()

	emit()
	return nil
}

// Disconnect immediately marks the peer disconnected and cancels any
// pending connect completion for it.
func (c *Catalog) Disconnect(id string) error {
	c.mu.Lock()
	c.cancelLocked(id)
	p, ok := c.peers[id]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownPeer
	}
	p.ConnectionState = StateDisconnected
	emit := c.eventLocked(EventStateChanged)
	c.mu.Unlock()

	emit()
	return nil
}

// Snapshot returns the catalog in first-seen order.
func (c *Catalog) Snapshot() []PeerRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Catalog) completeConnect(id string, attempt *connectAttempt) {
	c.mu.Lock()
	if c.pending[id] != attempt {
		// Cancelled or superseded while the timer was in flight.
		c.mu.Unlock()
		return
	}
	delete(c.pending, id)
	p, ok := c.peers[id]
	if !ok {
		c.mu.Unlock()
		log.Debugf("connect completion for %s dropped: catalog was reset", id)
		return
	}
	p.ConnectionState = StateConnected
	emit := c.eventLocked(EventStateChanged)
	c.mu.Unlock()

	emit()
}

func (c *Catalog) cancelLocked(id string) {
	if attempt, ok := c.pending[id]; ok {
		attempt.timer.Stop()
		delete(c.pending, id)
	}
}

func (c *Catalog) cancelAllLocked() {
	for _, attempt := range c.pending {
		attempt.timer.Stop()
	}
	c.pending = make(map[string]*connectAttempt)
}

func (c *Catalog) snapshotLocked() []PeerRecord {
	out := make([]PeerRecord, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.peers[id])
	}
	return out
}

func (c *Catalog) eventLocked(typ string) func() {
	evt := Event{Type: typ, SessionID: c.sessionID, Devices: c.snapshotLocked()}
	subs := make([]func(Event), len(c.subscribers))
	copy(subs, c.subscribers)
	return func() {
		for _, fn := range subs {
			fn(evt)
		}
	}
}
