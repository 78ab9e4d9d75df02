package slurm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LedgerName is the job ledger kept in each log root.
const LedgerName = "jobs.jsonl"

// LedgerPath returns the ledger location for a log root.
func LedgerPath(logDir string) string {
	return filepath.Join(logDir, LedgerName)
}

// LedgerEntry records one accepted submission.
type LedgerEntry struct {
	Timestamp  string   `json:"timestamp"`
	JobID      int64    `json:"job_id"`
	RunID      string   `json:"run_id"`
	RunName    string   `json:"run_name"`
	Command    string   `json:"command"`
	Partitions []string `json:"partitions"`
	NodeList   []string `json:"nodelist,omitempty"`
	Script     string   `json:"script"`
	Output     string   `json:"output"`
	Error      string   `json:"error"`
}

// Ledger appends submissions to a JSON-lines file.
type Ledger struct {
	writer io.WriteCloser
	mu     sync.Mutex
}

// OpenLedger opens path for appending, creating it and its directory.
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open job ledger: %w", err)
	}
	return &Ledger{writer: file}, nil
}

// Append writes entry as a single line.
func (l *Ledger) Append(entry LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}
	data = append(data, '\n')
	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("write ledger entry: %w", err)
	}
	return nil
}

// Close closes the ledger file.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Close()
}

// ReadLedger returns every entry in path. A missing ledger is empty and
// malformed lines are skipped.
func ReadLedger(path string) ([]LedgerEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open job ledger: %w", err)
	}
	defer file.Close()

	var entries []LedgerEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry LedgerEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("read job ledger: %w", err)
	}
	return entries, nil
}
