package persistence

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/lifeon/internal/engine"
)

// WriteSnapshot encodes a save as zstd-compressed JSON.
func WriteSnapshot(w io.Writer, data engine.SaveData) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("snapshot encoder: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(data); err != nil {
		enc.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

// ReadSnapshot decodes a save written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (engine.SaveData, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return engine.SaveData{}, fmt.Errorf("snapshot decoder: %w", err)
	}
	defer dec.Close()

	var data engine.SaveData
	if err := json.NewDecoder(dec).Decode(&data); err != nil {
		return engine.SaveData{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return data, nil
}

// WriteSnapshotFile writes a snapshot to path, replacing it atomically.
func WriteSnapshotFile(path string, data engine.SaveData) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := WriteSnapshot(f, data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ReadSnapshotFile reads a snapshot from path.
func ReadSnapshotFile(path string) (engine.SaveData, error) {
	f, err := os.Open(path)
	if err != nil {
		return engine.SaveData{}, err
	}
	defer f.Close()
	return ReadSnapshot(f)
}
