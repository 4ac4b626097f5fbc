// Package session is the websocket transport to the randomizer network.
// A Session covers exactly one connection: dial, handshake, read loop,
// liveness probe. Reconnection policy lives with the caller.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"dexlink.app/internal/protocol"
)

// Quality is the coarse connection-health indicator surfaced to the UI.
type Quality int

const (
	QualityDead Quality = iota
	QualityDegraded
	QualityGood
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	default:
		return "dead"
	}
}

// Credentials identify one slot on one server.
type Credentials struct {
	Host     string // host:port, no scheme
	Slot     string
	Game     string
	Password string
}

// Events are the push callbacks. They run on the session's read
// goroutine; handlers must not block on the session itself.
type Events struct {
	Connected     func(*protocol.ConnectedPacket)
	ItemsReceived func(protocol.ReceivedItemsPacket)
	LocationInfo  func(protocol.LocationInfoPacket)
	RoomUpdate    func(protocol.RoomUpdatePacket)
	PrintJSON     func(protocol.PrintJSONPacket)
	Bounced       func(protocol.BouncedPacket)
	Retrieved     func(protocol.RetrievedPacket)
	SetReply      func(protocol.SetReplyPacket)
	Disconnected  func()
}

// AuthError is a terminal login rejection; it is never retried.
type AuthError struct {
	Codes []string
}

func (e *AuthError) Error() string {
	return "login refused: " + strings.Join(e.Codes, ", ")
}

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 90 * time.Second
	writeTimeout     = 5 * time.Second
	probeInterval    = 20 * time.Second

	probeTag = "dexlink_probe"
)

type Session struct {
	creds  Credentials
	events Events
	log    *log.Logger

	clientID string

	mu            sync.RWMutex
	conn          *websocket.Conn
	authenticated bool
	quality       Quality
	latency       time.Duration
	probeSentAt   time.Time
	probeAcked    bool
	lastErr       string

	writeMu sync.Mutex
	limiter *rate.Limiter

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	discOnce sync.Once
}

func New(creds Credentials, events Events, logger *log.Logger) *Session {
	return &Session{
		creds:    creds,
		events:   events,
		log:      logger,
		clientID: uuid.NewString(),
		// Bursty milestone emissions are spread out rather than
		// hammered at the server.
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// candidateURLs lists the protocol variants tried in order: secure
// first, then insecure.
func candidateURLs(host string) []string {
	return []string{"wss://" + host, "ws://" + host}
}

// Login dials the server, trying each protocol variant, and completes
// the Connect handshake. An authentication-class refusal aborts the
// variant sweep and is returned as *AuthError. On success the read
// loop and liveness probe are running and the Connected event has
// fired.
func (s *Session) Login(ctx context.Context) error {
	var lastErr error
	for _, u := range candidateURLs(s.creds.Host) {
		d := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
		conn, resp, err := d.DialContext(ctx, u, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			lastErr = err
			continue
		}
		err = s.handshake(conn)
		if err != nil {
			_ = conn.Close()
			if _, terminal := err.(*AuthError); terminal {
				return err
			}
			lastErr = err
			continue
		}
		go s.readLoop(conn)
		go s.probeLoop()
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no protocol variant available")
	}
	return fmt.Errorf("connect %s: %w", s.creds.Host, lastErr)
}

func (s *Session) handshake(conn *websocket.Conn) error {
	connect := protocol.ConnectPacket{
		Cmd:           protocol.CmdConnect,
		Game:          s.creds.Game,
		Name:          s.creds.Slot,
		Password:      s.creds.Password,
		UUID:          s.clientID,
		Version:       protocol.ClientVersion,
		ItemsHandling: protocol.ItemsHandlingAll,
		SlotData:      true,
	}
	frame, err := protocol.EncodeFrame(connect)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return err
	}

	deadline := time.Now().Add(handshakeTimeout)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		packets, err := protocol.DecodeFrame(msg)
		if err != nil {
			continue
		}
		for i, raw := range packets {
			base, err := protocol.DecodeBase(raw)
			if err != nil {
				continue
			}
			switch base.Cmd {
			case protocol.CmdRoomInfo:
				// Pre-auth greeting; nothing to do, Connect is already
				// in flight.
			case protocol.CmdConnectionRefused:
				var p protocol.ConnectionRefusedPacket
				if err := json.Unmarshal(raw, &p); err != nil {
					continue
				}
				if protocol.AnyAuthFailure(p.Errors) {
					return &AuthError{Codes: p.Errors}
				}
				return fmt.Errorf("connection refused: %s", strings.Join(p.Errors, ", "))
			case protocol.CmdConnected:
				var p protocol.ConnectedPacket
				if err := json.Unmarshal(raw, &p); err != nil {
					return fmt.Errorf("parse Connected: %w", err)
				}
				s.mu.Lock()
				s.conn = conn
				s.authenticated = true
				s.quality = QualityGood
				s.lastErr = ""
				s.mu.Unlock()
				if s.events.Connected != nil {
					s.events.Connected(&p)
				}
				// The snapshot frame may carry trailing packets
				// (typically the initial ReceivedItems).
				for _, rest := range packets[i+1:] {
					s.dispatch(rest)
				}
				return nil
			}
		}
	}
	return fmt.Errorf("handshake timeout")
}

func (s *Session) readLoop(conn *websocket.Conn) {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			s.markDisconnected("closed")
			return
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.markDisconnected(err.Error())
			return
		}
		packets, err := protocol.DecodeFrame(msg)
		if err != nil {
			continue
		}
		for _, raw := range packets {
			s.dispatch(raw)
		}
	}
}

func (s *Session) dispatch(raw json.RawMessage) {
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		return
	}
	switch base.Cmd {
	case protocol.CmdReceivedItems:
		var p protocol.ReceivedItemsPacket
		if json.Unmarshal(raw, &p) == nil && s.events.ItemsReceived != nil {
			s.events.ItemsReceived(p)
		}
	case protocol.CmdLocationInfo:
		var p protocol.LocationInfoPacket
		if json.Unmarshal(raw, &p) == nil && s.events.LocationInfo != nil {
			s.events.LocationInfo(p)
		}
	case protocol.CmdRoomUpdate:
		var p protocol.RoomUpdatePacket
		if json.Unmarshal(raw, &p) == nil && s.events.RoomUpdate != nil {
			s.events.RoomUpdate(p)
		}
	case protocol.CmdPrintJSON:
		var p protocol.PrintJSONPacket
		if json.Unmarshal(raw, &p) == nil && s.events.PrintJSON != nil {
			s.events.PrintJSON(p)
		}
	case protocol.CmdBounced:
		var p protocol.BouncedPacket
		if json.Unmarshal(raw, &p) != nil {
			return
		}
		if s.handleProbeEcho(p) {
			return
		}
		if s.events.Bounced != nil {
			s.events.Bounced(p)
		}
	case protocol.CmdRetrieved:
		var p protocol.RetrievedPacket
		if json.Unmarshal(raw, &p) == nil && s.events.Retrieved != nil {
			s.events.Retrieved(p)
		}
	case protocol.CmdSetReply:
		var p protocol.SetReplyPacket
		if json.Unmarshal(raw, &p) == nil && s.events.SetReply != nil {
			s.events.SetReply(p)
		}
	}
}

func (s *Session) markDisconnected(reason string) {
	s.discOnce.Do(func() {
		s.mu.Lock()
		c := s.conn
		s.conn = nil
		s.authenticated = false
		s.quality = QualityDead
		s.latency = 0
		s.lastErr = reason
		s.mu.Unlock()
		if c != nil {
			_ = c.Close()
		}
		if s.log != nil {
			s.log.Printf("disconnected: %s", reason)
		}
		if s.events.Disconnected != nil {
			s.events.Disconnected()
		}
	})
}

// Close tears the connection down. Safe to call more than once.
func (s *Session) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.markDisconnected("closed")
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Session) Quality() Quality {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quality
}

func (s *Session) Latency() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latency
}

func (s *Session) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// send marshals packets into one frame and writes it, rate limited.
func (s *Session) send(packets ...any) error {
	_ = s.limiter.Wait(context.Background())
	frame, err := protocol.EncodeFrame(packets...)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// Check reports location checks to the server.
func (s *Session) Check(locations ...int64) error {
	if len(locations) == 0 {
		return nil
	}
	return s.send(protocol.LocationChecksPacket{Cmd: protocol.CmdLocationChecks, Locations: locations})
}

// Scout requests item info for locations without checking them.
func (s *Session) Scout(locations []int64, createAsHint bool) error {
	if len(locations) == 0 {
		return nil
	}
	hint := 0
	if createAsHint {
		hint = 2
	}
	return s.send(protocol.LocationScoutsPacket{Cmd: protocol.CmdLocationScouts, Locations: locations, CreateAsHint: hint})
}

// Sync asks the server for a full ReceivedItems replay from index 0.
func (s *Session) Sync() error {
	return s.send(protocol.SyncPacket{Cmd: protocol.CmdSync})
}

func (s *Session) Say(text string) error {
	return s.send(protocol.SayPacket{Cmd: protocol.CmdSay, Text: text})
}

func (s *Session) GetKeys(keys ...string) error {
	return s.send(protocol.GetPacket{Cmd: protocol.CmdGet, Keys: keys})
}

// SetKey replaces a shared storage key's value.
func (s *Session) SetKey(key string, value any) error {
	return s.send(protocol.SetPacket{
		Cmd:       protocol.CmdSet,
		Key:       key,
		WantReply: false,
		Operations: []protocol.SetOperation{
			{Operation: "replace", Value: value},
		},
	})
}

func (s *Session) SetNotify(keys ...string) error {
	return s.send(protocol.SetNotifyPacket{Cmd: protocol.CmdSetNotify, Keys: keys})
}

func (s *Session) StatusUpdate(status int) error {
	return s.send(protocol.StatusUpdatePacket{Cmd: protocol.CmdStatusUpdate, Status: status})
}

// probeLoop sends a tagged Bounce each interval while authenticated.
// A probe unanswered by the next interval downgrades quality to
// degraded; transport loss downgrades to dead elsewhere.
func (s *Session) probeLoop() {
	t := time.NewTicker(probeInterval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-s.done:
			return
		case <-t.C:
		}
		s.mu.Lock()
		if !s.authenticated {
			s.mu.Unlock()
			return
		}
		if !s.probeSentAt.IsZero() && !s.probeAcked {
			s.quality = QualityDegraded
		}
		s.probeSentAt = time.Now()
		s.probeAcked = false
		s.mu.Unlock()

		payload, _ := json.Marshal(map[string]int64{"sent_ns": time.Now().UnixNano()})
		_ = s.send(protocol.BouncePacket{
			Cmd:  protocol.CmdBounce,
			Tags: []string{probeTag},
			Data: payload,
		})
	}
}

// handleProbeEcho consumes our own probe Bounced echoes; other bounces
// pass through to the event handler.
func (s *Session) handleProbeEcho(p protocol.BouncedPacket) bool {
	mine := false
	for _, tag := range p.Tags {
		if tag == probeTag {
			mine = true
			break
		}
	}
	if !mine {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.probeSentAt.IsZero() {
		s.latency = time.Since(s.probeSentAt)
	}
	s.probeAcked = true
	if s.authenticated {
		s.quality = QualityGood
	}
	return true
}
