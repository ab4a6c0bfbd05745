package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mevscope/internal/model"
)

// JsonlStorage appends records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

var (
	_ ActionSink = (*JsonlStorage)(nil)
	_ TraceSink  = (*JsonlStorage)(nil)
)

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutActionBatch appends a batch of classified action records.
func (s *JsonlStorage) PutActionBatch(records []model.ActionRecord) error {
	if len(records) == 0 {
		return nil
	}
	lines := make([]interface{}, 0, len(records))
	for _, record := range records {
		lines = append(lines, record)
	}
	return s.appendLines(lines)
}

// PutBlockTrace appends one block's raw traces as a single line.
func (s *JsonlStorage) PutBlockTrace(block model.BlockTrace) error {
	return s.appendLines([]interface{}{block})
}

// ReadBlockTraces streams block traces from a JSONL file, one block
// per line, calling fn for each. Blank lines are skipped.
func ReadBlockTraces(path string, fn func(model.BlockTrace) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 64*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var block model.BlockTrace
		if err := json.Unmarshal(line, &block); err != nil {
			return fmt.Errorf("parse block trace: %w", err)
		}
		if err := fn(block); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}
	return nil
}

func (s *JsonlStorage) appendLines(lines []interface{}) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range lines {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
