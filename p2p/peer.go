package p2p

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxPayload bounds a single message's payload, per the binding
// requirement that the rewrite enforce a bounded payload length.
const DefaultMaxPayload = 4 << 20 // 4 MiB

// DefaultReadTimeout bounds how long an inbound worker waits for a
// connection's framed request.
const DefaultReadTimeout = 10 * time.Second

// Info identifies a peer in the peer table.
type Info struct {
	ID   string
	Host string
	Port int
}

func (i Info) String() string { return fmt.Sprintf("%s %s %d", i.ID, i.Host, i.Port) }

// Conn is handed to a handler for the lifetime of one inbound request. It
// wraps the raw connection so handlers never see net.Conn directly.
type Conn struct {
	net.Conn
	RemoteID string
}

// Reply writes one framed reply message.
func (c *Conn) Reply(msgType string, payload []byte) error {
	return WriteMessage(c, msgType, payload)
}

// Handler processes one request and may write zero or more replies via c.
type Handler func(c *Conn, payload []byte)

// Router resolves a logical peer id to an address, used by ConnectAndSend
// when given an id instead of a raw host/port.
type Router func(peerID string) (host string, port int, ok bool)

// Peer is the generic TCP peer: bounded membership table, inbound listener,
// outbound connect_and_send, and handler dispatch by message type.
type Peer struct {
	id          string
	maxPeers    int
	readTimeout time.Duration
	maxPayload  int
	log         *zap.SugaredLogger

	tableMu sync.RWMutex
	table   map[string]Info

	handlersMu sync.RWMutex
	handlers   map[string]Handler
	router     Router

	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
}

// New creates a peer identified by id (conventionally its own host:port).
func New(id string, maxPeers int, log *zap.SugaredLogger) *Peer {
	p := &Peer{
		id:          id,
		maxPeers:    maxPeers,
		readTimeout: DefaultReadTimeout,
		maxPayload:  DefaultMaxPayload,
		log:         log,
		table:       make(map[string]Info),
		handlers:    make(map[string]Handler),
		quit:        make(chan struct{}),
	}
	p.registerBuiltinHandlers()
	return p
}

// ID returns this peer's canonical id.
func (p *Peer) ID() string { return p.id }

// AddHandler registers fn for msgType, overwriting any previous handler.
func (p *Peer) AddHandler(msgType string, fn Handler) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.handlers[msgType] = fn
}

// AddRouter installs the peer-id resolver used by ConnectAndSendTo.
func (p *Peer) AddRouter(fn Router) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.router = fn
}

// Peers returns a snapshot of the current peer table.
func (p *Peer) Peers() []Info {
	p.tableMu.RLock()
	defer p.tableMu.RUnlock()
	out := make([]Info, 0, len(p.table))
	for _, info := range p.table {
		out = append(out, info)
	}
	return out
}

// InsertPeer adds a peer to the table, enforcing MaxPeers.
func (p *Peer) InsertPeer(info Info) error {
	p.tableMu.Lock()
	defer p.tableMu.Unlock()
	if _, exists := p.table[info.ID]; !exists && len(p.table) >= p.maxPeers {
		return fmt.Errorf("p2p: peer table full (max %d)", p.maxPeers)
	}
	p.table[info.ID] = info
	return nil
}

// RemovePeer removes a peer from the table.
func (p *Peer) RemovePeer(id string) {
	p.tableMu.Lock()
	defer p.tableMu.Unlock()
	delete(p.table, id)
}

// Listen starts the inbound accept loop on bind:port. Each accepted
// connection is handled by its own goroutine and closed after one request.
func (p *Peer) Listen(bind string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(bind, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("p2p: listen %s:%d: %w", bind, port, err)
	}
	p.listener = ln
	p.log.Infow("peer listening", "id", p.id, "fingerprint", Fingerprint(p.id), "addr", ln.Addr())
	p.wg.Add(1)
	go p.acceptLoop()
	return nil
}

// Addr returns the listener's bound address, valid after Listen succeeds.
func (p *Peer) Addr() net.Addr {
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

func (p *Peer) acceptLoop() {
	defer p.wg.Done()
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			select {
			case <-p.quit:
				return
			default:
				p.log.Warnw("accept failed", "error", err)
				return
			}
		}
		p.wg.Add(1)
		go p.handleConn(conn)
	}
}

func (p *Peer) handleConn(conn net.Conn) {
	defer p.wg.Done()
	defer conn.Close()

	if p.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(p.readTimeout))
	}
	msg, err := ReadMessage(conn, p.maxPayload)
	if err != nil {
		p.log.Debugw("failed to read inbound message", "remote", conn.RemoteAddr(), "error", err)
		return
	}

	p.handlersMu.RLock()
	handler, ok := p.handlers[msg.Type]
	p.handlersMu.RUnlock()
	if !ok {
		p.log.Debugw("no handler registered for message type", "type", msg.Type)
		return
	}

	c := &Conn{Conn: conn, RemoteID: conn.RemoteAddr().String()}
	handler(c, msg.Payload)
}

// Close stops the accept loop and waits for in-flight handlers to finish.
func (p *Peer) Close() error {
	close(p.quit)
	var err error
	if p.listener != nil {
		err = p.listener.Close()
	}
	p.wg.Wait()
	return err
}

// ConnectAndSend opens a connection to host:port, sends one framed request,
// and if expectReply is true reads framed replies until EOF. Failures are
// returned as an error rather than panicking; callers treat them as
// PeerUnreachable and continue.
func (p *Peer) ConnectAndSend(host string, port int, msgType string, payload []byte, expectReply bool) ([]Message, error) {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), p.readTimeout)
	if err != nil {
		return nil, fmt.Errorf("p2p: connect %s:%d: %w", host, port, err)
	}
	defer conn.Close()

	if err := WriteMessage(conn, msgType, payload); err != nil {
		return nil, fmt.Errorf("p2p: send to %s:%d: %w", host, port, err)
	}
	if !expectReply {
		return nil, nil
	}

	if p.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(p.readTimeout))
	}
	var replies []Message
	for {
		msg, err := ReadMessage(conn, p.maxPayload)
		if err != nil {
			break // EOF or timeout ends the reply stream
		}
		replies = append(replies, *msg)
	}
	return replies, nil
}

// ConnectAndSendTo resolves peerID through the installed router and then
// behaves like ConnectAndSend.
func (p *Peer) ConnectAndSendTo(peerID string, msgType string, payload []byte, expectReply bool) ([]Message, error) {
	p.handlersMu.RLock()
	router := p.router
	p.handlersMu.RUnlock()
	if router == nil {
		return nil, fmt.Errorf("p2p: no router installed, cannot resolve peer %q", peerID)
	}
	host, port, ok := router(peerID)
	if !ok {
		return nil, fmt.Errorf("p2p: router could not resolve peer %q", peerID)
	}
	return p.ConnectAndSend(host, port, msgType, payload, expectReply)
}

func (p *Peer) registerBuiltinHandlers() {
	p.handlers[TypeListPeers] = p.handleListPeers
	p.handlers[TypeInsertPeer] = p.handleInsertPeer
	p.handlers[TypePeerName] = p.handlePeerName
	p.handlers[TypePeerQuit] = p.handlePeerQuit
}

func (p *Peer) handleListPeers(c *Conn, _ []byte) {
	peers := p.Peers()
	_ = c.Reply(TypeReply, []byte(strconv.Itoa(len(peers))))
	for _, info := range peers {
		_ = c.Reply(TypeReply, []byte(info.String()))
	}
}

func (p *Peer) handleInsertPeer(c *Conn, payload []byte) {
	fields := strings.Fields(string(payload))
	if len(fields) != 3 {
		_ = c.Reply(TypeError, []byte("INSERTPEER requires \"<id> <host> <port>\""))
		return
	}
	port, err := strconv.Atoi(fields[2])
	if err != nil {
		_ = c.Reply(TypeError, []byte("invalid port"))
		return
	}
	info := Info{ID: fields[0], Host: fields[1], Port: port}
	if err := p.InsertPeer(info); err != nil {
		_ = c.Reply(TypeError, []byte(err.Error()))
		return
	}
	_ = c.Reply(TypeReply, []byte("ok"))
}

func (p *Peer) handlePeerName(c *Conn, _ []byte) {
	_ = c.Reply(TypeReply, []byte(p.id))
}

func (p *Peer) handlePeerQuit(c *Conn, payload []byte) {
	id := strings.TrimSpace(string(payload))
	if id == "" {
		_ = c.Reply(TypeError, []byte("PEERQUIT requires \"<id>\""))
		return
	}
	p.RemovePeer(id)
	_ = c.Reply(TypeReply, []byte("ok"))
}
