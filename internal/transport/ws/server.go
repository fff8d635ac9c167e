package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"memewars.gg/internal/protocol"
	"memewars.gg/internal/sim/tuning"
)

// HelloFunc answers an opponent's HELLO with the match it joins. Returning a
// *protocol.InvalidMessage picks the wire code sent back; any other error is E_INTERNAL.
type HelloFunc func(ctx context.Context, hello protocol.HelloMsg) (protocol.MatchMsg, error)

// Joined is an opponent that completed the handshake.
type Joined struct {
	Peer  *Peer
	Hello protocol.HelloMsg
	Match protocol.MatchMsg
}

// Server is the host side of a match: it takes exactly one opponent.
type Server struct {
	tune    tuning.Tuning
	log     *log.Logger
	onHello HelloFunc

	upgrader websocket.Upgrader

	mu     sync.Mutex
	busy   bool
	joined chan Joined
}

func NewServer(tune tuning.Tuning, logger *log.Logger, onHello HelloFunc) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		tune:    tune,
		log:     logger,
		onHello: onHello,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		joined: make(chan Joined, 1),
	}
}

// Accept blocks until an opponent has joined.
func (s *Server) Accept(ctx context.Context) (Joined, error) {
	select {
	case j := <-s.joined:
		return j, nil
	case <-ctx.Done():
		return Joined{}, ctx.Err()
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		if !s.claim() {
			// Drain the HELLO so the refusal is not lost to a reset.
			_ = conn.SetReadDeadline(time.Now().Add(s.handshakeTimeout()))
			_, _, _ = conn.ReadMessage()
			reject(conn, &HandshakeError{Code: protocol.ErrMatchBusy, Message: "match already has an opponent"})
			_ = conn.Close()
			return
		}

		j, err := s.handshake(r.Context(), conn)
		if err != nil {
			s.release()
			var he *HandshakeError
			if errors.As(err, &he) {
				reject(conn, he)
			}
			_ = conn.Close()
			return
		}
		s.log.Printf("opponent joined: node=%s match=%s", j.Hello.NodeID, j.Match.MatchID)
		s.joined <- j
		<-j.Peer.Done()
	}
}

func (s *Server) claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *Server) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func refuse(err error) *HandshakeError {
	return &HandshakeError{Code: protocol.CodeOf(err), Message: err.Error()}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (Joined, error) {
	if s.tune.MaxMessageBytes > 0 {
		conn.SetReadLimit(s.tune.MaxMessageBytes)
	}
	_ = conn.SetReadDeadline(time.Now().Add(s.handshakeTimeout()))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		if errors.Is(err, websocket.ErrReadLimit) {
			return Joined{}, &HandshakeError{Code: protocol.ErrTooLarge, Message: "hello exceeds max_message_bytes"}
		}
		return Joined{}, err
	}

	base, err := protocol.ValidateMessage(msg)
	if err != nil {
		return Joined{}, refuse(err)
	}
	if base.Type != protocol.TypeHello {
		return Joined{}, &HandshakeError{Code: protocol.ErrProtoBadRequest, Message: "expected HELLO"}
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return Joined{}, &HandshakeError{Code: protocol.ErrProtoBadRequest, Message: err.Error()}
	}

	m, err := s.onHello(ctx, hello)
	if err != nil {
		s.log.Printf("hello from %s refused: %v", hello.NodeID, err)
		return Joined{}, refuse(err)
	}
	m.Type, m.ProtocolVersion = protocol.TypeMatch, protocol.Version
	if err := writeJSON(conn, m); err != nil {
		return Joined{}, err
	}
	_ = conn.SetReadDeadline(time.Time{})

	return Joined{
		Peer:  newPeer(conn, s.tune.MaxMessageBytes, s.tune.OutboxQueue),
		Hello: hello,
		Match: m,
	}, nil
}

func (s *Server) handshakeTimeout() time.Duration {
	if s.tune.HandshakeTimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.tune.HandshakeTimeoutMs) * time.Millisecond
}

// HandshakeError is the host's ERROR reply to a HELLO.
type HandshakeError struct {
	Code    string
	Message string
}

func (e *HandshakeError) Error() string {
	if e.Message == "" {
		return "handshake refused: " + e.Code
	}
	return fmt.Sprintf("handshake refused: %s: %s", e.Code, e.Message)
}

// Dial connects to a host, sends hello and waits for the MATCH reply.
func Dial(ctx context.Context, url string, hello protocol.HelloMsg, tune tuning.Tuning) (*Peer, protocol.MatchMsg, error) {
	timeout := time.Duration(tune.HandshakeTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, protocol.MatchMsg{}, err
	}

	hello.Type, hello.ProtocolVersion = protocol.TypeHello, protocol.Version
	if err := writeJSON(conn, hello); err != nil {
		_ = conn.Close()
		return nil, protocol.MatchMsg{}, err
	}
	if tune.MaxMessageBytes > 0 {
		conn.SetReadLimit(tune.MaxMessageBytes)
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, protocol.MatchMsg{}, err
	}
	m, err := decodeMatch(msg)
	if err != nil {
		_ = conn.Close()
		return nil, protocol.MatchMsg{}, err
	}
	_ = conn.SetReadDeadline(time.Time{})
	return newPeer(conn, tune.MaxMessageBytes, tune.OutboxQueue), m, nil
}

func decodeMatch(msg []byte) (protocol.MatchMsg, error) {
	var m protocol.MatchMsg
	base, err := protocol.ValidateMessage(msg)
	if err != nil {
		return m, err
	}
	switch base.Type {
	case protocol.TypeMatch:
		if err := json.Unmarshal(msg, &m); err != nil {
			return m, err
		}
		return m, nil
	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err != nil {
			return m, err
		}
		return m, &HandshakeError{Code: e.Code, Message: e.Message}
	}
	return m, fmt.Errorf("expected MATCH, got %s", base.Type)
}

func reject(conn *websocket.Conn, e *HandshakeError) {
	_ = writeJSON(conn, protocol.NewError(e.Code, e.Message))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, e.Code), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
