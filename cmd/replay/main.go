package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"memewars.gg/internal/node"
	"memewars.gg/internal/sim/catalogs"
)

func main() {
	var (
		dataDir     = flag.String("data", "./data", "runtime data directory")
		matchID     = flag.String("match", "", "match id under <data>/matches")
		matchDir    = flag.String("dir", "", "match directory (overrides -data/-match)")
		snapPath    = flag.String("snapshot", "", "path to .snap.zst (default: oldest snapshot of the match)")
		catalogPath = flag.String("catalog", "", "path to cards.json (default: embedded catalog)")
	)
	flag.Parse()

	dir := strings.TrimSpace(*matchDir)
	if dir == "" {
		if strings.TrimSpace(*matchID) == "" {
			fmt.Fprintln(os.Stderr, "missing -match or -dir")
			os.Exit(2)
		}
		dir = node.MatchDir(*dataDir, *matchID)
	}

	cat, err := catalogs.Load(*catalogPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalog:", err)
		os.Exit(1)
	}

	rep, err := node.Replay(cat, dir, *snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	winner := "none"
	if rep.Winner != nil {
		winner = rep.Winner.String()
	}
	fmt.Printf("match=%s from_turn=%d ops=%d turn=%d phase=%s stakes=%d winner=%s draws=%d\n",
		rep.MatchID, rep.FromTurn, rep.Ops, rep.Turn, rep.Phase, rep.Stakes, winner, rep.Draws)
	fmt.Println("replay ok")
}
