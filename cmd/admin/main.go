package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"memewars.gg/internal/node"
	"memewars.gg/internal/persistence/archive"
	"memewars.gg/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints one line per match under the data dir: its id, snapshot count and, once
// finished, the archived result.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "matches")
	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		dir := node.MatchDir(*dataDir, id)
		snaps, _ := snapshot.List(node.SnapshotDir(dir))
		line := fmt.Sprintf("%s snapshots=%d", id, len(snaps))
		if meta, err := archive.ReadMeta(dir); err == nil {
			line += fmt.Sprintf(" over turn=%d stakes=%d winner=%s scores=%d/%d", meta.Turn, meta.Stakes, meta.Winner, meta.Scores[0], meta.Scores[1])
		} else if len(snaps) > 0 {
			if h, err := snapshot.ReadHeader(snaps[len(snaps)-1]); err == nil {
				line += fmt.Sprintf(" live turn=%d seq=%d", h.Turn, h.Seq)
			}
		}
		fmt.Println(line)
	}
}

// snapshotCmd prints the header of one snapshot (default: the latest of -match).
func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	matchID := fs.String("match", "", "match id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	withGame := fs.Bool("game", false, "include the full game state")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*matchID) == "" {
			fmt.Fprintln(os.Stderr, "missing -match or -snapshot")
			os.Exit(2)
		}
		var err error
		path, err = snapshot.Latest(node.SnapshotDir(node.MatchDir(*dataDir, *matchID)))
		if err != nil {
			fmt.Fprintln(os.Stderr, "latest snapshot:", err)
			os.Exit(1)
		}
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	out := struct {
		Path          string          `json:"path"`
		Header        snapshot.Header `json:"header"`
		CatalogDigest string          `json:"catalog_digest"`
		Stakes        int             `json:"stakes"`
		Phase         string          `json:"phase"`
		Game          rawJSON         `json:"game,omitempty"`
	}{
		Path:          path,
		Header:        snap.Header,
		CatalogDigest: snap.CatalogDigest,
		Stakes:        snap.Stakes,
		Phase:         snap.Phase,
	}
	if *withGame {
		out.Game = rawJSON(snap.Game)
	}
	printJSON(out)
}

// rawJSON embeds already-encoded JSON; empty means omitted.
type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}
