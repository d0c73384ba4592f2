package runlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Batch is a finite set of normalized runs read from disk, plus a count of
// records that were dropped during validation.
type Batch struct {
	Runs    []*RunLog
	Dropped int
}

// Add appends the runs and drop count of another batch.
func (b *Batch) Add(other *Batch) {
	b.Runs = append(b.Runs, other.Runs...)
	b.Dropped += other.Dropped
}

// DecodeRuns decodes a stream of run records. The stream may hold a single
// JSON object, a JSON array of objects, or newline-delimited objects (the
// simulation runner emits all three shapes depending on version). Records
// that fail validation are dropped and counted; a stream that cannot be
// decoded at all is an error.
func DecodeRuns(r io.Reader) (*Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return &Batch{}, nil
	}

	var raws []*RunLog
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("decode run array: %w", err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		for dec.More() {
			var raw RunLog
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("decode run object: %w", err)
			}
			raws = append(raws, &raw)
		}
	}

	batch := &Batch{}
	for _, raw := range raws {
		run, err := Normalize(raw)
		if err != nil {
			batch.Dropped++
			continue
		}
		batch.Runs = append(batch.Runs, run)
	}
	return batch, nil
}

// ReadFile reads and normalizes all runs in a single file.
func ReadFile(path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run file: %w", err)
	}
	defer f.Close()

	batch, err := DecodeRuns(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return batch, nil
}

// ReadDir reads every file in dir matching pattern (e.g. "*.json"), in name
// order so repeated reads of the same directory yield the same batch. A file
// that cannot be decoded drops as one record rather than failing the batch.
func ReadDir(dir, pattern string) (*Batch, error) {
	if pattern == "" {
		pattern = "*.json"
	}
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob runs dir: %w", err)
	}
	sort.Strings(paths)

	batch := &Batch{}
	for _, path := range paths {
		fileBatch, err := ReadFile(path)
		if err != nil {
			batch.Dropped++
			continue
		}
		batch.Add(fileBatch)
	}
	return batch, nil
}
