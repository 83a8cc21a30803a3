package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"settlementScope/internal/model"
)

// AuditLog writes audit records to a JSONL file, for runs without a
// database. The cursor lives in a checkpoint file next to the log.
// Duplicate rows are suppressed by key within the process lifetime.
type AuditLog struct {
	path       string
	checkpoint *CheckpointStore

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewAuditLog builds a JSONL audit sink with its checkpoint file. The
// chain and settlement identity is stamped into the checkpoint so a
// cursor is never resumed against the wrong deployment.
func NewAuditLog(path, checkpointPath, chainName string, settlement common.Address) *AuditLog {
	return &AuditLog{
		path:       path,
		checkpoint: NewCheckpointStore(checkpointPath, chainName, settlement),
		seen:       make(map[string]struct{}),
	}
}

type auditLine struct {
	Kind   string `json:"kind"`
	Record any    `json:"record"`
}

func (a *AuditLog) WriteImbalances(_ context.Context, records []model.ImbalanceRecord) error {
	lines := make([]auditLine, 0, len(records))
	keys := make([]string, 0, len(records))
	for _, record := range records {
		lines = append(lines, auditLine{Kind: "imbalance", Record: record})
		keys = append(keys, fmt.Sprintf("imbalance:%s:%s", record.TxHash.Hex(), record.Token.Hex()))
	}
	return a.appendLines(lines, keys)
}

func (a *AuditLog) WriteFees(_ context.Context, records []model.FeeRecord) error {
	lines := make([]auditLine, 0, len(records))
	keys := make([]string, 0, len(records))
	for _, record := range records {
		lines = append(lines, auditLine{Kind: "fee", Record: record})
		keys = append(keys, fmt.Sprintf("fee:%s:%s:%s", record.TxHash.Hex(), record.OrderUID, record.Type))
	}
	return a.appendLines(lines, keys)
}

func (a *AuditLog) WritePrices(_ context.Context, records []model.PriceRecord) error {
	lines := make([]auditLine, 0, len(records))
	keys := make([]string, 0, len(records))
	for _, record := range records {
		lines = append(lines, auditLine{Kind: "price", Record: record})
		keys = append(keys, fmt.Sprintf("price:%s:%s", record.TxHash.Hex(), record.Token.Hex()))
	}
	return a.appendLines(lines, keys)
}

func (a *AuditLog) LoadCursor(_ context.Context, _ string) (uint64, bool, error) {
	cp, ok, err := a.checkpoint.Load()
	if err != nil || !ok {
		return 0, false, err
	}
	return cp.LastProcessedBlock, true, nil
}

func (a *AuditLog) SaveCursor(_ context.Context, _ string, blockNumber uint64) error {
	return a.checkpoint.Save(blockNumber)
}

func (a *AuditLog) appendLines(lines []auditLine, keys []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	fresh := make([]auditLine, 0, len(lines))
	for i, line := range lines {
		if _, ok := a.seen[keys[i]]; ok {
			continue
		}
		fresh = append(fresh, line)
	}
	if len(fresh) == 0 {
		return nil
	}

	dir := filepath.Dir(a.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, line := range fresh {
		encoded, err := json.Marshal(line)
		if err != nil {
			return fmt.Errorf("marshal audit record: %w", err)
		}
		if _, err := writer.Write(encoded); err != nil {
			return fmt.Errorf("write audit record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush audit log: %w", err)
	}

	for _, key := range keys {
		a.seen[key] = struct{}{}
	}
	return nil
}
