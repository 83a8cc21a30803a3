package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"settlementScope/internal/model"
)

var testSettlement = common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41")

func testRecord(value int64) model.ImbalanceRecord {
	return model.ImbalanceRecord{
		ChainName:   "mainnet",
		AuctionID:   42,
		BlockNumber: 100,
		TxHash:      common.HexToHash("0xaaaa"),
		Token:       common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Imbalance:   big.NewInt(value),
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan audit log: %v", err)
	}
	return lines
}

func TestAuditLogAppendsRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	log := NewAuditLog(path, "", "mainnet", testSettlement)

	if err := log.WriteImbalances(context.Background(), []model.ImbalanceRecord{testRecord(500)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(lines))
	}

	var line struct {
		Kind   string          `json:"kind"`
		Record json.RawMessage `json:"record"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &line); err != nil {
		t.Fatalf("parse line: %v", err)
	}
	if line.Kind != "imbalance" {
		t.Fatalf("kind = %s, want imbalance", line.Kind)
	}

	var record struct {
		Imbalance string `json:"imbalance"`
	}
	if err := json.Unmarshal(line.Record, &record); err != nil {
		t.Fatalf("parse record: %v", err)
	}
	if record.Imbalance != "500" {
		t.Fatalf("imbalance = %q, want decimal string \"500\"", record.Imbalance)
	}
}

func TestAuditLogSuppressesDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	log := NewAuditLog(path, "", "mainnet", testSettlement)

	for i := 0; i < 2; i++ {
		if err := log.WriteImbalances(context.Background(), []model.ImbalanceRecord{testRecord(500)}); err != nil {
			t.Fatalf("pass %d: unexpected error: %v", i, err)
		}
	}

	if lines := readLines(t, path); len(lines) != 1 {
		t.Fatalf("lines = %d, want duplicate suppressed", len(lines))
	}
}

func TestAuditLogCursorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	log := NewAuditLog(filepath.Join(dir, "audit.jsonl"), filepath.Join(dir, "checkpoint.json"), "mainnet", testSettlement)

	if _, ok, err := log.LoadCursor(context.Background(), "mainnet"); err != nil || ok {
		t.Fatalf("fresh cursor = ok %v err %v, want absent", ok, err)
	}

	if err := log.SaveCursor(context.Background(), "mainnet", 12345); err != nil {
		t.Fatalf("save cursor: %v", err)
	}

	cursor, ok, err := log.LoadCursor(context.Background(), "mainnet")
	if err != nil {
		t.Fatalf("load cursor: %v", err)
	}
	if !ok || cursor != 12345 {
		t.Fatalf("cursor = %d ok %v, want 12345", cursor, ok)
	}
}

func TestCheckpointStoreAtomicSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")
	store := NewCheckpointStore(path, "mainnet", testSettlement)

	if err := store.Save(77); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind")
	}

	cp, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("load = ok %v err %v", ok, err)
	}
	if cp.LastProcessedBlock != 77 {
		t.Fatalf("last processed = %d, want 77", cp.LastProcessedBlock)
	}
	if cp.Chain != "mainnet" || cp.Settlement != testSettlement {
		t.Fatalf("identity = %s/%s, want mainnet/%s", cp.Chain, cp.Settlement.Hex(), testSettlement.Hex())
	}
}

func TestCheckpointStoreRejectsForeignCursor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")

	if err := NewCheckpointStore(path, "mainnet", testSettlement).Save(77); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, _, err := NewCheckpointStore(path, "gnosis", testSettlement).Load(); err == nil {
		t.Fatalf("cursor from another chain accepted")
	}
	other := common.HexToAddress("0x2222222222222222222222222222222222222222")
	if _, _, err := NewCheckpointStore(path, "mainnet", other).Load(); err == nil {
		t.Fatalf("cursor from another settlement contract accepted")
	}
}

func TestCheckpointStoreDisabled(t *testing.T) {
	store := NewCheckpointStore("", "mainnet", testSettlement)

	if err := store.Save(1); err != nil {
		t.Fatalf("disabled save: %v", err)
	}
	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("disabled load = ok %v err %v, want absent", ok, err)
	}
}
