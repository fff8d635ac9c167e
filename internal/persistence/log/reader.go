package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"memewars.gg/internal/sim/session"
)

// Files lists prefix-*.jsonl.zst in dir, oldest first. File names sort by hour.
func Files(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// ReadJSONL calls fn for every line of a compressed JSONL file. A file whose last frame is still
// open (the writer has not closed it yet) is read up to the last flushed line.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

func readAll[T any](dir, prefix string) ([]T, error) {
	files, err := Files(dir, prefix)
	if err != nil {
		return nil, err
	}
	var out []T
	for _, path := range files {
		err := ReadJSONL(path, func(line []byte) error {
			var v T
			if err := json.Unmarshal(line, &v); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			out = append(out, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadOps loads every op entry written under matchDir, in write order.
func ReadOps(matchDir string) ([]session.Entry, error) {
	return readAll[session.Entry](filepath.Join(matchDir, "ops"), "ops")
}

// ReadRandom loads the random audit trail written under matchDir.
func ReadRandom(matchDir string) ([]session.RandomEntry, error) {
	return readAll[session.RandomEntry](filepath.Join(matchDir, "random"), "random")
}
