package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"memewars.gg/internal/persistence/snapshot"
	"memewars.gg/internal/sim/match"
	"memewars.gg/internal/sim/tuning"
)

var ErrStopped = errors.New("session stopped")

type OpLogger interface {
	WriteOp(Entry) error
}

type AuditLogger interface {
	WriteRandom(RandomEntry) error
}

// Indexer receives read-model updates. Implementations must not block the session loop.
type Indexer interface {
	RecordMatch(Info)
	RecordEntry(Entry)
	RecordRandom(RandomEntry)
}

// Info describes a match for the index.
type Info struct {
	MatchID        string `json:"match_id"`
	Seed           uint64 `json:"seed"`
	HostNodeID     string `json:"host_node_id"`
	OpponentNodeID string `json:"opponent_node_id"`
	CatalogDigest  string `json:"catalog_digest"`
}

type Config struct {
	MatchID string
	Game    *match.Game
	Tuning  tuning.Tuning

	// Seq resumes numbering after a snapshot; zero for a fresh match.
	Seq uint64

	OpLog  OpLogger
	Audit  AuditLogger
	Index  Indexer
	Logger *log.Logger
}

// Notice is sent to subscribers after every applied op.
type Notice struct {
	Entry Entry
	Over  bool
}

type request struct {
	op    *Op
	query func(*match.Game)
	peer  *match.StateHash

	resp chan response
}

type response struct {
	entry Entry
	err   error
}

// Session owns one game. All reads and writes happen on the Run goroutine, in arrival order.
type Session struct {
	cfg    Config
	g      *match.Game
	logger *log.Logger

	inbox chan request
	stop  chan struct{}
	done  chan struct{}

	seq        uint64
	randomSeen int
	// boundary holds the state hash at the start of each turn; peers compare these.
	boundary map[int]string
	expect   map[int]string
	desync   error

	snapshotSink chan<- snapshot.SnapshotV1

	subMu sync.Mutex
	subs  map[int]chan Notice
	subID int
}

func New(cfg Config) (*Session, error) {
	if cfg.Game == nil {
		return nil, errors.New("session: nil game")
	}
	if cfg.Game.Catalog() == nil {
		return nil, errors.New("session: game has no catalog attached")
	}
	if cfg.MatchID == "" {
		return nil, errors.New("session: empty match id")
	}
	if cfg.Tuning.InboxQueue <= 0 {
		cfg.Tuning = tuning.Defaults()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[session] ", log.LstdFlags|log.Lmicroseconds)
	}
	s := &Session{
		cfg:      cfg,
		g:        cfg.Game,
		logger:   logger,
		inbox:    make(chan request, cfg.Tuning.InboxQueue),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		seq:      cfg.Seq,
		boundary: map[int]string{},
		expect:   map[int]string{},
		subs:     map[int]chan Notice{},
	}
	return s, nil
}

func (s *Session) MatchID() string { return s.cfg.MatchID }

func (s *Session) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { s.snapshotSink = ch }

// Run serves requests until ctx is done or Stop is called. The initial random history and a
// starting snapshot are emitted before the first request.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	if s.cfg.Index != nil {
		s.cfg.Index.RecordMatch(s.info())
	}
	s.flushRandom()
	if err := s.markBoundary(); err != nil {
		return err
	}
	s.emitSnapshot()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case req := <-s.inbox:
			req.resp <- s.handle(req)
		}
	}
}

func (s *Session) Stop() { close(s.stop) }

// Submit applies op and returns its log entry. Rejected ops leave the game untouched and are not
// logged.
func (s *Session) Submit(ctx context.Context, op Op) (Entry, error) {
	r, err := s.call(ctx, request{op: &op})
	if err != nil {
		return Entry{}, err
	}
	return r.entry, r.err
}

// Query runs fn on the session goroutine. fn must not retain g.
func (s *Session) Query(ctx context.Context, fn func(g *match.Game)) error {
	r, err := s.call(ctx, request{query: fn})
	if err != nil {
		return err
	}
	return r.err
}

// VerifyPeerHash compares a peer's state hash with ours for the same turn start. A hash for a
// turn not reached yet is kept and checked when the turn begins.
func (s *Session) VerifyPeerHash(ctx context.Context, remote match.StateHash) error {
	r, err := s.call(ctx, request{peer: &remote})
	if err != nil {
		return err
	}
	return r.err
}

// BoundaryHash returns the state hash recorded at the start of turn.
func (s *Session) BoundaryHash(ctx context.Context, turn int) (string, bool, error) {
	var (
		h  string
		ok bool
	)
	err := s.Query(ctx, func(*match.Game) { h, ok = s.boundary[turn] })
	return h, ok, err
}

func (s *Session) Subscribe(buf int) (<-chan Notice, func()) {
	ch := make(chan Notice, buf)
	s.subMu.Lock()
	s.subID++
	id := s.subID
	s.subs[id] = ch
	s.subMu.Unlock()
	return ch, func() {
		s.subMu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
		}
		s.subMu.Unlock()
	}
}

func (s *Session) call(ctx context.Context, req request) (response, error) {
	req.resp = make(chan response, 1)
	select {
	case s.inbox <- req:
	case <-ctx.Done():
		return response{}, ctx.Err()
	case <-s.done:
		return response{}, ErrStopped
	}
	select {
	case r := <-req.resp:
		return r, nil
	case <-ctx.Done():
		return response{}, ctx.Err()
	case <-s.done:
		return response{}, ErrStopped
	}
}

func (s *Session) handle(req request) response {
	switch {
	case req.query != nil:
		req.query(s.g)
		return response{}
	case req.peer != nil:
		return response{err: s.checkPeer(*req.peer)}
	case req.op != nil:
		entry, err := s.apply(*req.op)
		return response{entry: entry, err: err}
	}
	return response{err: errors.New("empty request")}
}

func (s *Session) apply(op Op) (Entry, error) {
	if s.desync != nil {
		return Entry{}, s.desync
	}
	turn, wasOver := s.g.Turn, s.g.Over()
	if err := ApplyOp(s.g, op); err != nil {
		return Entry{}, err
	}
	s.seq++
	h, err := s.g.StateHash()
	if err != nil {
		return Entry{}, fmt.Errorf("state hash: %w", err)
	}
	entry := Entry{
		Seq:       s.seq,
		MatchID:   s.cfg.MatchID,
		Op:        op,
		Turn:      s.g.Turn,
		Phase:     s.g.Phase,
		Stakes:    s.g.Stakes,
		StateHash: h.Hash,
		Resolved:  s.g.Turn != turn || (!wasOver && s.g.Over() && op.Kind != OpFoldBased),
		Winner:    s.g.Winner,
	}
	if s.cfg.OpLog != nil {
		if err := s.cfg.OpLog.WriteOp(entry); err != nil {
			s.logger.Printf("match=%s op log: %v", s.cfg.MatchID, err)
		}
	}
	if s.cfg.Index != nil {
		s.cfg.Index.RecordEntry(entry)
	}
	s.flushRandom()

	if entry.Resolved {
		s.boundary[s.g.Turn] = h.Hash
		if err := s.checkExpected(s.g.Turn); err != nil {
			s.publish(Notice{Entry: entry, Over: s.g.Over()})
			return entry, err
		}
		if every := s.cfg.Tuning.SnapshotEveryTurns; every > 0 && turn%every == 0 {
			s.emitSnapshot()
		}
	}
	if s.g.Over() {
		winner := "none"
		if s.g.Winner != nil {
			winner = s.g.Winner.String()
		}
		s.logger.Printf("match=%s over turn=%d winner=%s stakes=%d", s.cfg.MatchID, s.g.Turn, winner, s.g.Stakes)
		s.emitSnapshot()
	}
	s.publish(Notice{Entry: entry, Over: s.g.Over()})
	return entry, nil
}

func (s *Session) markBoundary() error {
	h, err := s.g.StateHash()
	if err != nil {
		return fmt.Errorf("state hash: %w", err)
	}
	s.boundary[s.g.Turn] = h.Hash
	return nil
}

func (s *Session) checkPeer(remote match.StateHash) error {
	if s.desync != nil {
		return s.desync
	}
	local, ok := s.boundary[remote.Turn]
	if !ok {
		if remote.Turn < s.g.Turn {
			return fmt.Errorf("no state hash recorded for turn %d", remote.Turn)
		}
		s.expect[remote.Turn] = remote.Hash
		return nil
	}
	return s.compare(remote.Turn, local, remote.Hash)
}

func (s *Session) checkExpected(turn int) error {
	want, ok := s.expect[turn]
	if !ok {
		return nil
	}
	delete(s.expect, turn)
	return s.compare(turn, s.boundary[turn], want)
}

func (s *Session) compare(turn int, local, remote string) error {
	if local == remote {
		return nil
	}
	s.desync = &match.Error{
		Kind:   match.KindStateHashMismatch,
		Phase:  s.g.Phase,
		Detail: fmt.Sprintf("turn %d local %s remote %s", turn, local, remote),
	}
	s.logger.Printf("match=%s desync: %v", s.cfg.MatchID, s.desync)
	return s.desync
}

func (s *Session) flushRandom() {
	hist := s.g.Random.History
	for ; s.randomSeen < len(hist); s.randomSeen++ {
		re := RandomEntry{MatchID: s.cfg.MatchID, Seq: s.seq, Index: s.randomSeen, Event: hist[s.randomSeen]}
		if s.cfg.Audit != nil {
			if err := s.cfg.Audit.WriteRandom(re); err != nil {
				s.logger.Printf("match=%s audit log: %v", s.cfg.MatchID, err)
			}
		}
		if s.cfg.Index != nil {
			s.cfg.Index.RecordRandom(re)
		}
	}
}

func (s *Session) emitSnapshot() {
	if s.snapshotSink == nil {
		return
	}
	snap, err := s.export()
	if err != nil {
		s.logger.Printf("match=%s snapshot: %v", s.cfg.MatchID, err)
		return
	}
	select {
	case s.snapshotSink <- snap:
	default:
		// Drop snapshot if sink is backed up.
	}
}

func (s *Session) export() (snapshot.SnapshotV1, error) {
	raw, err := s.g.Encode()
	if err != nil {
		return snapshot.SnapshotV1{}, err
	}
	return snapshot.SnapshotV1{
		Header:        snapshot.Header{Version: snapshot.Version, MatchID: s.cfg.MatchID, Turn: s.g.Turn, Seq: s.seq},
		CatalogDigest: s.g.Catalog().Digest,
		Stakes:        s.g.Stakes,
		Phase:         string(s.g.Phase),
		Game:          raw,
	}, nil
}

func (s *Session) info() Info {
	return Info{
		MatchID:        s.cfg.MatchID,
		Seed:           s.g.Seed,
		HostNodeID:     s.g.Players[0].NodeID,
		OpponentNodeID: s.g.Players[1].NodeID,
		CatalogDigest:  s.g.Catalog().Digest,
	}
}

// publish drops notices for subscribers that fall behind.
func (s *Session) publish(n Notice) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- n:
		default:
		}
	}
}
