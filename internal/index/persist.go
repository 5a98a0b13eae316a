package index

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// persistedIndex is the on-disk representation: the tokenized corpus plus
// parameters. Postings are rebuilt on load so the format stays small and
// version-tolerant.
type persistedIndex struct {
	ChunkIDs  []string
	DocTokens [][]string
	K1        float64
	B         float64
}

// Save writes the tokenized corpus and parameters to path. The write goes to
// a temp file first and is renamed into place.
func (idx *BM25Index) Save(path string) error {
	idx.mu.RLock()
	snap := idx.snap
	idx.mu.RUnlock()

	if snap == nil {
		return fmt.Errorf("cannot save an unbuilt index")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	p := persistedIndex{
		ChunkIDs:  snap.chunkIDs,
		DocTokens: snap.docTokens,
		K1:        idx.k1,
		B:         idx.b,
	}
	if err := gob.NewEncoder(f).Encode(&p); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move index into place: %w", err)
	}

	idx.logger.Info("BM25 index saved", "path", path, "documents", len(p.ChunkIDs))
	return nil
}

// Load restores a saved index. Search output after Load is identical to the
// output of the index that was saved.
func (idx *BM25Index) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var p persistedIndex
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}
	if err := idx.validateLoaded(p.ChunkIDs, p.DocTokens); err != nil {
		return err
	}

	idx.mu.Lock()
	if p.K1 >= minK1 && p.K1 <= maxK1 {
		idx.k1 = p.K1
	}
	if p.B > 0 && p.B <= 1 {
		idx.b = p.B
	}
	idx.snap = idx.assemble(p.ChunkIDs, p.DocTokens, nil)
	idx.mu.Unlock()

	idx.logger.Info("BM25 index loaded", "path", path, "documents", len(p.ChunkIDs))
	return nil
}
