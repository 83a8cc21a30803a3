package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Checkpoint is the audit cursor for one chain's settlement contract.
// The identity fields guard against resuming from a file written for a
// different deployment.
type Checkpoint struct {
	Chain              string         `json:"chain"`
	Settlement         common.Address `json:"settlement"`
	LastProcessedBlock uint64         `json:"last_processed_block"`
	UpdatedAt          string         `json:"updated_at"`
}

// CheckpointStore persists the audit cursor to disk. An empty path
// disables persistence.
type CheckpointStore struct {
	path       string
	chain      string
	settlement common.Address
}

func NewCheckpointStore(path, chainName string, settlement common.Address) *CheckpointStore {
	return &CheckpointStore{path: path, chain: chainName, settlement: settlement}
}

func (c *CheckpointStore) Load() (Checkpoint, bool, error) {
	if c.path == "" {
		return Checkpoint{}, false, nil
	}

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return Checkpoint{}, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	if cp.Chain != c.chain || cp.Settlement != c.settlement {
		return Checkpoint{}, false, fmt.Errorf("checkpoint belongs to %s/%s, configured for %s/%s",
			cp.Chain, cp.Settlement.Hex(), c.chain, c.settlement.Hex())
	}

	return cp, true, nil
}

func (c *CheckpointStore) Save(lastProcessed uint64) error {
	if c.path == "" {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp := Checkpoint{
		Chain:              c.chain,
		Settlement:         c.settlement,
		LastProcessedBlock: lastProcessed,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}
