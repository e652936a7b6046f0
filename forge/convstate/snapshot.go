package convstate

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// snapshotEnvelope is the single-document snapshot layout: the state record
// with iterations carried separately so the two halves can evolve
// independently.
type snapshotEnvelope struct {
	State      *ConversationState `json:"state"`
	Iterations []*IterationRecord `json:"iterations"`
}

// lineRecord is one JSONL snapshot line.
type lineRecord struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeSnapshot serializes a conversation state to a single JSON document.
func EncodeSnapshot(state *ConversationState) ([]byte, error) {
	env := snapshotEnvelope{State: state, Iterations: state.Iterations}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrSnapshot, err)
	}
	return data, nil
}

// DecodeSnapshot restores a conversation state from a JSON document produced
// by EncodeSnapshot.
func DecodeSnapshot(data []byte) (*ConversationState, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSnapshot, err)
	}
	state := env.State
	if state == nil {
		state = NewConversationState()
	}
	if state.AvailableAgents == nil {
		state.AvailableAgents = make(map[string]string)
	}
	state.Iterations = env.Iterations
	return state, nil
}

// WriteSnapshot writes a JSON snapshot to a file, creating parent
// directories as needed.
func WriteSnapshot(state *ConversationState, path string) error {
	data, err := EncodeSnapshot(state)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	return nil
}

// ReadSnapshot loads a JSON snapshot from a file.
func ReadSnapshot(path string) (*ConversationState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	return DecodeSnapshot(data)
}

// EncodeSnapshotLines writes the JSONL snapshot form: one state record
// followed by one record per iteration.
func EncodeSnapshotLines(state *ConversationState, w io.Writer) error {
	write := func(recordType string, value any) error {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("%w: encode %s: %v", ErrSnapshot, recordType, err)
		}
		line, err := json.Marshal(lineRecord{Type: recordType, Data: data})
		if err != nil {
			return fmt.Errorf("%w: encode %s: %v", ErrSnapshot, recordType, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("%w: write: %v", ErrSnapshot, err)
		}
		return nil
	}

	if err := write("state", state); err != nil {
		return err
	}
	for _, rec := range state.Iterations {
		if err := write("iteration", rec); err != nil {
			return err
		}
	}
	return nil
}

// DecodeSnapshotLines restores a conversation state from its JSONL form.
// Blank lines are skipped; malformed lines and unknown record types fail.
func DecodeSnapshotLines(r io.Reader) (*ConversationState, error) {
	state := NewConversationState()
	var iterations []*IterationRecord

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record lineRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("%w: invalid line: %v", ErrSnapshot, err)
		}
		switch record.Type {
		case "state":
			if err := json.Unmarshal(record.Data, state); err != nil {
				return nil, fmt.Errorf("%w: state record: %v", ErrSnapshot, err)
			}
		case "iteration":
			if len(record.Data) == 0 {
				return nil, fmt.Errorf("%w: iteration record missing data", ErrSnapshot)
			}
			var rec IterationRecord
			if err := json.Unmarshal(record.Data, &rec); err != nil {
				return nil, fmt.Errorf("%w: iteration record: %v", ErrSnapshot, err)
			}
			iterations = append(iterations, &rec)
		default:
			return nil, fmt.Errorf("%w: unknown record type %q", ErrSnapshot, record.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrSnapshot, err)
	}
	if state.AvailableAgents == nil {
		state.AvailableAgents = make(map[string]string)
	}
	state.Iterations = append(state.Iterations, iterations...)
	return state, nil
}
