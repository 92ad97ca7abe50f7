package vecindex

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// Snapshot layout: two artifacts written together. The index blob holds
// uint32 dimension, uint32 count, then per row an int64 row id followed by
// dimension float32 components (all little-endian). The idmap document is
// JSON with string-encoded row ids as keys and record ids as values.
// Both are written via temp-file-then-rename so a crash mid-write never
// leaves a torn pair.

// Persist writes the index blob and idmap to their configured paths.
// Encoding happens under the lock; file writes do not. Only the final
// renames reacquire the lock. Each call writes its own uniquely named temp
// files, so concurrent Persist calls never consume each other's temps and
// the rename pair always comes from a single encoding. No-op when the
// index is uninitialized.
func (m *Manager) Persist() error {
	m.mu.Lock()
	if m.dim == 0 {
		m.mu.Unlock()
		return nil
	}
	blob, err := m.encodeIndexLocked()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	idmapDoc, err := m.encodeIDMapLocked()
	m.mu.Unlock()
	if err != nil {
		return err
	}

	for _, dir := range []string{filepath.Dir(m.indexPath), filepath.Dir(m.idmapPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmpIndex, err := writeTemp(m.indexPath, blob)
	if err != nil {
		return fmt.Errorf("write index blob: %w", err)
	}
	tmpIDMap, err := writeTemp(m.idmapPath, idmapDoc)
	if err != nil {
		_ = os.Remove(tmpIndex)
		return fmt.Errorf("write idmap: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.Rename(tmpIndex, m.indexPath); err != nil {
		_ = os.Remove(tmpIndex)
		_ = os.Remove(tmpIDMap)
		return fmt.Errorf("rename index blob: %w", err)
	}
	if err := os.Rename(tmpIDMap, m.idmapPath); err != nil {
		_ = os.Remove(tmpIDMap)
		return fmt.Errorf("rename idmap: %w", err)
	}
	return nil
}

// writeTemp writes data to a fresh temp file next to target and returns its
// path. Temp files must live on the same filesystem as the target for the
// rename to stay atomic.
func writeTemp(target string, data []byte) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp-*")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Load restores both snapshot artifacts. If either file is missing the
// manager starts empty without error. A corrupt or inconsistent snapshot is
// an error: startup should not silently run on partial state.
func (m *Manager) Load() error {
	blob, err := os.ReadFile(m.indexPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index blob: %w", err)
	}
	idmapDoc, err := os.ReadFile(m.idmapPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read idmap: %w", err)
	}

	dim, rowIDs, vectors, err := decodeIndex(blob)
	if err != nil {
		return fmt.Errorf("corrupt index blob: %w", err)
	}
	idmap, err := decodeIDMap(idmapDoc)
	if err != nil {
		return fmt.Errorf("corrupt idmap: %w", err)
	}
	for _, rowID := range rowIDs {
		if _, ok := idmap[rowID]; !ok {
			return fmt.Errorf("corrupt snapshot: row id %d missing from idmap", rowID)
		}
	}

	var next int64
	for _, rowID := range rowIDs {
		if rowID >= next {
			next = rowID + 1
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dim != 0 && m.dim != dim {
		return fmt.Errorf("%w: index d=%d, snapshot d=%d", ErrDimensionMismatch, m.dim, dim)
	}
	m.dim = dim
	m.rowIDs = rowIDs
	m.vectors = vectors
	m.idmap = idmap
	m.nextRowID = next
	return nil
}

func (m *Manager) encodeIndexLocked() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(m.dim)); err != nil {
		return nil, fmt.Errorf("encode dimension: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(m.rowIDs))); err != nil {
		return nil, fmt.Errorf("encode count: %w", err)
	}
	scratch := make([]byte, 8)
	for i, rowID := range m.rowIDs {
		binary.LittleEndian.PutUint64(scratch, uint64(rowID))
		buf.Write(scratch)
		for _, v := range m.vectors[i] {
			binary.LittleEndian.PutUint32(scratch[:4], math.Float32bits(v))
			buf.Write(scratch[:4])
		}
	}
	return buf.Bytes(), nil
}

func (m *Manager) encodeIDMapLocked() ([]byte, error) {
	doc := make(map[string]string, len(m.idmap))
	for rowID, recordID := range m.idmap {
		doc[strconv.FormatInt(rowID, 10)] = recordID
	}
	return json.Marshal(doc)
}

func decodeIndex(blob []byte) (int, []int64, [][]float32, error) {
	r := bytes.NewReader(blob)
	var dim, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return 0, nil, nil, fmt.Errorf("read dimension: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return 0, nil, nil, fmt.Errorf("read count: %w", err)
	}
	if dim == 0 {
		return 0, nil, nil, fmt.Errorf("zero dimension")
	}

	rowIDs := make([]int64, 0, count)
	vectors := make([][]float32, 0, count)
	vecBuf := make([]byte, int(dim)*4)
	for i := uint32(0); i < count; i++ {
		var rowID int64
		if err := binary.Read(r, binary.LittleEndian, &rowID); err != nil {
			return 0, nil, nil, fmt.Errorf("read row id: %w", err)
		}
		if _, err := io.ReadFull(r, vecBuf); err != nil {
			return 0, nil, nil, fmt.Errorf("read vector: %w", err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(vecBuf[j*4 : (j+1)*4]))
		}
		rowIDs = append(rowIDs, rowID)
		vectors = append(vectors, vec)
	}
	return int(dim), rowIDs, vectors, nil
}

func decodeIDMap(doc []byte) (map[int64]string, error) {
	var raw map[string]string
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, err
	}
	idmap := make(map[int64]string, len(raw))
	for key, recordID := range raw {
		rowID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid row id key %q: %w", key, err)
		}
		idmap[rowID] = recordID
	}
	return idmap, nil
}
