// Package miner implements the interruptible proof-of-work search (C7) as
// a state machine {Idle, Searching, Found, Interrupted, Shutdown}, driven by
// a condition variable rather than the spin-wait loops of the source.
package miner

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fernandolobato/indiecoin/chainmodel"
)

// State is one of the miner's five states.
type State int

const (
	Idle State = iota
	Searching
	Found
	Interrupted
	Shutdown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Searching:
		return "searching"
	case Found:
		return "found"
	case Interrupted:
		return "interrupted"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Miner searches for a nonce that satisfies proof of work for whatever
// candidate block it currently holds. One goroutine should call Run; every
// other method is safe to call concurrently from the node's handlers.
type Miner struct {
	mu              sync.Mutex
	cond            *sync.Cond
	state           State
	candidate       *chainmodel.Block
	resumeRequested bool
	interruptFlag   atomic.Bool

	foundCh chan *chainmodel.Block
	log     *zap.SugaredLogger
}

// New creates a miner in the Idle state.
func New(log *zap.SugaredLogger) *Miner {
	m := &Miner{
		state:   Idle,
		foundCh: make(chan *chainmodel.Block, 1),
		log:     log,
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// State reports the miner's current state.
func (m *Miner) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Found yields blocks as the search completes them.
func (m *Miner) Found() <-chan *chainmodel.Block {
	return m.foundCh
}

// SetBlock delivers a freshly assembled candidate. From Idle it starts the
// search immediately; from Interrupted it only starts once Resume has also
// been called, satisfying the "resume and a freshly set candidate" rule.
func (m *Miner) SetBlock(candidate *chainmodel.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Shutdown {
		return
	}
	m.candidate = candidate
	switch m.state {
	case Idle:
		m.startSearchingLocked()
	case Interrupted:
		if m.resumeRequested {
			m.resumeRequested = false
			m.startSearchingLocked()
		}
	}
}

// Interrupt drops the current candidate and moves Searching or Found to
// Interrupted. It is observed by the search loop between nonces, not
// mid-hash.
func (m *Miner) Interrupt() {
	m.interruptFlag.Store(true)
	m.mu.Lock()
	if m.state == Searching || m.state == Found {
		m.state = Interrupted
		m.candidate = nil
		m.log.Debugw("miner interrupted", "phase", "interrupted")
	}
	m.mu.Unlock()
	m.cond.Broadcast()
}

// Resume clears the interrupt once the caller is ready for mining to
// continue. Searching only restarts once SetBlock also supplies a fresh
// candidate (or already has).
func (m *Miner) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Interrupted {
		return
	}
	if m.candidate != nil {
		m.startSearchingLocked()
		return
	}
	m.resumeRequested = true
}

// Shutdown is terminal from any state.
func (m *Miner) Shutdown() {
	m.mu.Lock()
	m.state = Shutdown
	m.mu.Unlock()
	m.cond.Broadcast()
}

func (m *Miner) startSearchingLocked() {
	m.interruptFlag.Store(false)
	m.resumeRequested = false
	m.state = Searching
	m.log.Debugw("miner searching", "phase", "mining", "height", m.candidate.Height)
	m.cond.Broadcast()
}

// Run is the miner's main loop: wait for Searching, search until found or
// interrupted, repeat. It returns once the state reaches Shutdown.
func (m *Miner) Run() {
	for {
		m.mu.Lock()
		for m.state != Searching && m.state != Shutdown {
			m.cond.Wait()
		}
		if m.state == Shutdown {
			m.mu.Unlock()
			return
		}
		candidate := m.candidate
		m.mu.Unlock()

		sealed, ok := m.search(candidate)

		m.mu.Lock()
		if m.state != Searching {
			// interrupted or shut down while searching; discard the result.
			m.mu.Unlock()
			continue
		}
		if !ok {
			m.mu.Unlock()
			continue
		}
		m.state = Found
		m.log.Debugw("miner found a block", "phase", "found", "hash", sealed.Hash, "height", sealed.Height)
		m.mu.Unlock()

		select {
		case m.foundCh <- sealed:
		default:
		}

		m.mu.Lock()
		if m.state == Found {
			m.state = Idle
			m.candidate = nil
		}
		m.mu.Unlock()
		m.cond.Broadcast()
	}
}

// search iterates nonces starting at 0 until one satisfies proof of work or
// the interrupt flag is observed. It never mutates the caller's candidate.
func (m *Miner) search(candidate *chainmodel.Block) (*chainmodel.Block, bool) {
	working := *candidate
	for nonce := int64(0); ; nonce++ {
		if m.interruptFlag.Load() {
			return nil, false
		}
		working.Nonce = nonce
		working.Hash = ""
		sealed := chainmodel.NewBlock(working)
		if sealed.SatisfiesProofOfWork() {
			return sealed, true
		}
	}
}
