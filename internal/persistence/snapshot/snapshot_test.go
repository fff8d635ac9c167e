package snapshot

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	in := SnapshotV1{
		Header:        Header{MatchID: "m1", Turn: 5, Seq: 17},
		CatalogDigest: "abc",
		Stakes:        4,
		Phase:         "commit",
		Game:          []byte(`{"turn":5}`),
	}
	path := Path(dir, 5)
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Header.Version != Version || out.Header.MatchID != "m1" || out.Header.Turn != 5 || out.Header.Seq != 17 {
		t.Fatalf("header=%+v", out.Header)
	}
	if out.CatalogDigest != "abc" || out.Stakes != 4 || !bytes.Equal(out.Game, in.Game) {
		t.Fatalf("body=%+v", out)
	}

	h, err := ReadHeader(path)
	if err != nil || h != out.Header {
		t.Fatalf("header=%+v err=%v", h, err)
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if p, err := Latest(filepath.Join(dir, "missing")); err != nil || p != "" {
		t.Fatalf("missing dir: path=%q err=%v", p, err)
	}
	for _, turn := range []int{5, 15, 10} {
		if err := WriteSnapshot(Path(dir, turn), SnapshotV1{Header: Header{Turn: turn}}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	p, err := Latest(dir)
	if err != nil || p != Path(dir, 15) {
		t.Fatalf("latest=%q err=%v", p, err)
	}
}

func TestList_OrdersByTurn(t *testing.T) {
	dir := t.TempDir()
	for _, turn := range []int{12, 3, 100} {
		if err := WriteSnapshot(Path(dir, turn), SnapshotV1{Header: Header{Turn: turn}}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	paths, err := List(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{Path(dir, 3), Path(dir, 12), Path(dir, 100)}
	if len(paths) != len(want) {
		t.Fatalf("paths=%v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths[%d]=%s want %s", i, paths[i], want[i])
		}
	}
}
