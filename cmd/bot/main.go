package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"memewars.gg/internal/node"
	"memewars.gg/internal/protocol"
	"memewars.gg/internal/sim/autoplay"
	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/model"
	"memewars.gg/internal/sim/tuning"
	"memewars.gg/internal/transport/ws"
)

func main() {
	var (
		url         = flag.String("url", "ws://localhost:8080/v1/ws", "host ws url")
		dataDir     = flag.String("data", "./data-bot", "runtime data directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (optional)")
		catalogPath = flag.String("catalog", "", "path to cards.json (default: embedded catalog)")
		nodeID      = flag.String("node", "", "node id (default: random)")
		deckFlag    = flag.String("deck", "", "comma-separated card ids (default: catalog default deck)")
		callLead    = flag.Int("call_lead", 10, "score lead at which the bot calls based (0 never calls)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	cat, err := catalogs.Load(*catalogPath)
	if err != nil {
		logger.Fatalf("load catalog: %v", err)
	}
	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	id := strings.TrimSpace(*nodeID)
	if id == "" {
		id = "bot-" + uuid.NewString()[:8]
	}
	deck := cat.DefaultDeck
	if s := strings.TrimSpace(*deckFlag); s != "" {
		deck = nil
		for _, c := range strings.Split(s, ",") {
			if c = strings.TrimSpace(c); c != "" {
				deck = append(deck, c)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	peer, m, err := ws.Dial(ctx, *url, protocol.HelloMsg{NodeID: id, Deck: deck, CatalogDigest: cat.Digest}, tune)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer peer.Close()
	logger.Printf("MATCH id=%s seed=%d host=%s", m.MatchID, m.Seed, m.HostNodeID)

	g, err := protocol.JoinMatch(cat, m)
	if err != nil {
		_ = peer.Send(ctx, protocol.NewError(protocol.CodeOf(err), err.Error()))
		_ = peer.Close()
		logger.Fatalf("join: %v", err)
	}

	bot := autoplay.New()
	bot.CallLead = *callLead
	res, err := node.Play(ctx, node.Config{
		MatchID:   m.MatchID,
		Game:      g,
		Tuning:    tune,
		DataDir:   *dataDir,
		DisableDB: *disableDB,
		Link:      peer,
		Seat:      model.Opponent,
		Player:    bot,
		Logger:    logger,
	})
	if err != nil {
		logger.Printf("match %s ended with error: %v", m.MatchID, err)
		return
	}
	winner := "none"
	if res.Winner != nil {
		winner = res.Winner.String()
	}
	logger.Printf("match %s over turn=%d stakes=%d winner=%s verified=%v", m.MatchID, res.Turn, res.Stakes, winner, res.Verified)
}
