package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"memewars.gg/internal/node"
	"memewars.gg/internal/protocol"
	"memewars.gg/internal/sim/autoplay"
	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/model"
	"memewars.gg/internal/sim/tuning"
	"memewars.gg/internal/transport/observer"
	"memewars.gg/internal/transport/ws"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (optional)")
		catalogPath = flag.String("catalog", "", "path to cards.json (default: embedded catalog)")
		nodeID      = flag.String("node", "", "host node id (default: random)")
		deckFlag    = flag.String("deck", "", "comma-separated card ids (default: catalog default deck)")
		seed        = flag.Uint64("seed", 0, "match seed (0 picks one)")
		matchID     = flag.String("match", "", "match id (default: random)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cat, err := catalogs.Load(*catalogPath)
	if err != nil {
		logger.Fatalf("load catalog: %v", err)
	}
	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}

	host := protocol.HostSide{
		MatchID: strings.TrimSpace(*matchID),
		Seed:    *seed,
		NodeID:  strings.TrimSpace(*nodeID),
		Deck:    parseDeck(*deckFlag, cat),
	}
	if host.MatchID == "" {
		host.MatchID = uuid.NewString()
	}
	if host.NodeID == "" {
		host.NodeID = "host-" + uuid.NewString()[:8]
	}
	if host.Seed == 0 {
		id := uuid.New()
		host.Seed = binary.BigEndian.Uint64(id[:8])
	}

	srv := ws.NewServer(tune, logger, func(_ context.Context, hello protocol.HelloMsg) (protocol.MatchMsg, error) {
		m, _, err := protocol.HostMatch(cat, host, hello)
		return m, err
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/ws", srv.Handler())

	// Local spectators: loopback only, public board and applied ops.
	obs := observer.NewServer(log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds))
	mux.HandleFunc("/v1/observe", obs.WSHandler())
	mux.HandleFunc("/v1/observe/bootstrap", obs.BootstrapHandler())
	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		logger.Printf("listening on %s match=%s node=%s seed=%d", *addr, host.MatchID, host.NodeID, host.Seed)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("http: %v", err)
			cancel()
		}
	}()
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	j, err := srv.Accept(ctx)
	if err != nil {
		logger.Printf("no opponent: %v", err)
		return
	}
	defer j.Peer.Close()

	g, err := protocol.BuildGame(cat, j.Match)
	if err != nil {
		logger.Fatalf("build game: %v", err)
	}
	if err := g.ValidateStateHash(j.Match.StateHash); err != nil {
		logger.Fatalf("setup hash: %v", err)
	}

	res, err := node.Play(ctx, node.Config{
		MatchID:   host.MatchID,
		Game:      g,
		Tuning:    tune,
		DataDir:   *dataDir,
		DisableDB: *disableDB,
		Link:      j.Peer,
		Seat:      model.Host,
		Player:    autoplay.New(),
		Logger:    logger,
		OnSession: obs.Attach,
	})
	if err != nil {
		logger.Printf("match %s ended with error: %v", host.MatchID, err)
		return
	}
	winner := "none"
	if res.Winner != nil {
		winner = res.Winner.String()
	}
	logger.Printf("match %s over turn=%d stakes=%d winner=%s verified=%v", host.MatchID, res.Turn, res.Stakes, winner, res.Verified)
}

func parseDeck(s string, cat *catalogs.Catalog) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return cat.DefaultDeck
	}
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
