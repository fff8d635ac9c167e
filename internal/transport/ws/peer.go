package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("ws: peer closed")

const (
	writeWait = 5 * time.Second
	// Turns wait on a human or a slow bot; the read deadline only catches dead links.
	readWait = 5 * time.Minute
)

// Peer is an established match link. It satisfies driver.Link.
type Peer struct {
	conn *websocket.Conn

	out chan []byte
	in  chan []byte

	closing    chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once

	done    chan struct{}
	once    sync.Once
	errMu   sync.Mutex
	readErr error
}

func newPeer(conn *websocket.Conn, maxBytes int64, queue int) *Peer {
	if queue <= 0 {
		queue = 64
	}
	if maxBytes > 0 {
		conn.SetReadLimit(maxBytes)
	}
	p := &Peer{
		conn: conn,
		out:  make(chan []byte, queue),
		in:   make(chan []byte, queue),

		closing:    make(chan struct{}),
		writerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
	go p.writeLoop()
	go p.readLoop()
	return p
}

// writeLoop is the only writer of data frames on conn.
func (p *Peer) writeLoop() {
	defer close(p.writerDone)
	write := func(b []byte) error {
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return p.conn.WriteMessage(websocket.TextMessage, b)
	}
	for {
		select {
		case <-p.done:
			return
		case b := <-p.out:
			if err := write(b); err != nil {
				p.closeWith(err)
				return
			}
		case <-p.closing:
			for {
				select {
				case b := <-p.out:
					if err := write(b); err != nil {
						p.closeWith(err)
						return
					}
					continue
				default:
				}
				break
			}
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			p.closeWith(ErrClosed)
			return
		}
	}
}

func (p *Peer) readLoop() {
	for {
		_ = p.conn.SetReadDeadline(time.Now().Add(readWait))
		_, msg, err := p.conn.ReadMessage()
		if err != nil {
			p.closeWith(err)
			return
		}
		select {
		case p.in <- msg:
		case <-p.done:
			return
		}
	}
}

func (p *Peer) Send(ctx context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case p.out <- b:
		return nil
	case <-p.done:
		return p.err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Peer) Recv(ctx context.Context) ([]byte, error) {
	select {
	case b := <-p.in:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		// Deliver anything read before the close.
		select {
		case b := <-p.in:
			return b, nil
		default:
		}
		return nil, p.err()
	}
}

// Done is closed once the link is down.
func (p *Peer) Done() <-chan struct{} { return p.done }

// Close flushes queued messages, sends a normal close frame and tears the link down.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() { close(p.closing) })
	select {
	case <-p.writerDone:
	case <-time.After(2 * writeWait):
	}
	p.closeWith(ErrClosed)
	return nil
}

func (p *Peer) closeWith(err error) {
	p.once.Do(func() {
		p.errMu.Lock()
		p.readErr = err
		p.errMu.Unlock()
		close(p.done)
		_ = p.conn.Close()
	})
}

func (p *Peer) err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	if p.readErr == nil {
		return ErrClosed
	}
	return p.readErr
}
