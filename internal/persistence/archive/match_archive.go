package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"memewars.gg/internal/persistence/snapshot"
	"memewars.gg/internal/sim/match"
	"memewars.gg/internal/sim/model"
)

type MatchArchiveMeta struct {
	MatchID       string `json:"match_id"`
	Turn          int    `json:"turn"`
	Seq           uint64 `json:"seq"`
	Stakes        int    `json:"stakes"`
	Winner        string `json:"winner"`
	Scores        [2]int `json:"scores"`
	CatalogDigest string `json:"catalog_digest"`
	Snapshot      string `json:"snapshot"`
	CreatedAt     string `json:"created_at"`
}

// ArchiveFinalSnapshot copies the game-over snapshot of a match into `matchDir/archive/` next to a
// meta.json summary. Snapshots of a match still in play are left alone (archived=false).
func ArchiveFinalSnapshot(matchDir, snapshotPath string, snap snapshot.SnapshotV1) (archivedPath string, archived bool, err error) {
	if snap.Phase != string(match.PhaseGameOver) {
		return "", false, nil
	}
	var result struct {
		Winner  *model.Seat `json:"winner"`
		Players [2]*struct {
			Score int `json:"score"`
		} `json:"players"`
	}
	if err := json.Unmarshal(snap.Game, &result); err != nil {
		return "", false, fmt.Errorf("decode final game: %w", err)
	}

	archiveDir := filepath.Join(matchDir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}
	dst := filepath.Join(archiveDir, "final.snap.zst")
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := MatchArchiveMeta{
		MatchID:       snap.Header.MatchID,
		Turn:          snap.Header.Turn,
		Seq:           snap.Header.Seq,
		Stakes:        snap.Stakes,
		Winner:        "none",
		CatalogDigest: snap.CatalogDigest,
		Snapshot:      filepath.Base(dst),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	if result.Winner != nil {
		meta.Winner = result.Winner.String()
	}
	for i, p := range result.Players {
		if p != nil {
			meta.Scores[i] = p.Score
		}
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", false, err
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return "", false, err
	}
	return dst, true, nil
}

// ReadMeta loads the archive summary of a finished match.
func ReadMeta(matchDir string) (MatchArchiveMeta, error) {
	var m MatchArchiveMeta
	b, err := os.ReadFile(filepath.Join(matchDir, "archive", "meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
