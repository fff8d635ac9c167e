package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"memewars.gg/internal/node"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	matchID := fs.String("match", "", "match id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	turn := fs.Int("turn", 0, "turn filter (ops, random)")
	limit := fs.Int("limit", 50, "result limit")
	_ = fs.Parse(args)

	q := "match"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*matchID) == "" {
			fmt.Fprintln(os.Stderr, "missing -match or -db")
			os.Exit(2)
		}
		path = node.IndexPath(node.MatchDir(*dataDir, *matchID))
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "index:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if *limit <= 0 {
		*limit = 50
	}

	switch q {
	case "match":
		rows, err := db.Query(`SELECT match_id,seed,host_node_id,opponent_node_id,catalog_digest,started_at,last_seq,turn,phase,stakes,winner FROM matches ORDER BY started_at DESC`)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				MatchID        string         `json:"match_id"`
				Seed           int64          `json:"seed"`
				HostNodeID     string         `json:"host_node_id"`
				OpponentNodeID string         `json:"opponent_node_id"`
				CatalogDigest  string         `json:"catalog_digest"`
				StartedAt      string         `json:"started_at"`
				LastSeq        int64          `json:"last_seq"`
				Turn           int            `json:"turn"`
				Phase          string         `json:"phase"`
				Stakes         int            `json:"stakes"`
				Winner         sql.NullString `json:"-"`
				WinnerSeat     string         `json:"winner,omitempty"`
			}
			if err := rows.Scan(&r.MatchID, &r.Seed, &r.HostNodeID, &r.OpponentNodeID, &r.CatalogDigest, &r.StartedAt, &r.LastSeq, &r.Turn, &r.Phase, &r.Stakes, &r.Winner); err != nil {
				fail("scan", err)
			}
			r.WinnerSeat = r.Winner.String
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "turns":
		rows, err := db.Query(`SELECT match_id,turn,seq,state_hash,stakes,phase FROM turns ORDER BY turn DESC LIMIT ?`, *limit)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				MatchID   string `json:"match_id"`
				Turn      int    `json:"turn"`
				Seq       int64  `json:"seq"`
				StateHash string `json:"state_hash"`
				Stakes    int    `json:"stakes"`
				Phase     string `json:"phase"`
			}
			if err := rows.Scan(&r.MatchID, &r.Turn, &r.Seq, &r.StateHash, &r.Stakes, &r.Phase); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "ops":
		query := `SELECT seq,kind,seat,turn,state_hash FROM ops ORDER BY seq DESC LIMIT ?`
		qargs := []any{*limit}
		if *turn > 0 {
			query = `SELECT seq,kind,seat,turn,state_hash FROM ops WHERE turn=? ORDER BY seq DESC LIMIT ?`
			qargs = []any{*turn, *limit}
		}
		rows, err := db.Query(query, qargs...)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Seq       int64  `json:"seq"`
				Kind      string `json:"kind"`
				Seat      string `json:"seat"`
				Turn      int    `json:"turn"`
				StateHash string `json:"state_hash"`
			}
			if err := rows.Scan(&r.Seq, &r.Kind, &r.Seat, &r.Turn, &r.StateHash); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "random":
		query := `SELECT idx,seq,turn,kind,bound,result FROM random_events ORDER BY idx DESC LIMIT ?`
		qargs := []any{*limit}
		if *turn > 0 {
			query = `SELECT idx,seq,turn,kind,bound,result FROM random_events WHERE turn=? ORDER BY idx DESC LIMIT ?`
			qargs = []any{*turn, *limit}
		}
		rows, err := db.Query(query, qargs...)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Index  int    `json:"index"`
				Seq    int64  `json:"seq"`
				Turn   int    `json:"turn"`
				Kind   string `json:"kind"`
				Bound  int64  `json:"bound"`
				Result int64  `json:"result"`
			}
			if err := rows.Scan(&r.Index, &r.Seq, &r.Turn, &r.Kind, &r.Bound, &r.Result); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "snapshots":
		rows, err := db.Query(`SELECT turn,seq,path,stakes,phase FROM snapshots ORDER BY seq DESC LIMIT ?`, *limit)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Turn   int    `json:"turn"`
				Seq    int64  `json:"seq"`
				Path   string `json:"path"`
				Stakes int    `json:"stakes"`
				Phase  string `json:"phase"`
			}
			if err := rows.Scan(&r.Turn, &r.Seq, &r.Path, &r.Stakes, &r.Phase); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-match ID|-db PATH] [-turn T] [-limit N] match|turns|ops|random|snapshots")
		os.Exit(2)
	}
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
