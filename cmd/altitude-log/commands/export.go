package commands

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/altitude-protocol/altitude-go/pkg/log"
)

// exportRecord is the flat representation used by both export formats.
type exportRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	ConnectionID string    `json:"connection_id"`
	Direction    string    `json:"direction"`
	Category     string    `json:"category"`
	RemoteAddr   string    `json:"remote_addr,omitempty"`
	DeviceID     string    `json:"device_id,omitempty"`
	Text         string    `json:"text,omitempty"`
	Kind         string    `json:"kind,omitempty"`
	OldState     string    `json:"old_state,omitempty"`
	NewState     string    `json:"new_state,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Error        string    `json:"error,omitempty"`
	ErrorContext string    `json:"error_context,omitempty"`
}

func toRecord(event log.Event) exportRecord {
	record := exportRecord{
		Timestamp:    event.Timestamp,
		ConnectionID: event.ConnectionID,
		Direction:    event.Direction.String(),
		Category:     event.Category.String(),
		RemoteAddr:   event.RemoteAddr,
		DeviceID:     event.DeviceID,
	}
	if event.Line != nil {
		record.Text = event.Line.Text
		record.Kind = event.Line.Kind
	}
	if event.StateChange != nil {
		record.OldState = event.StateChange.OldState
		record.NewState = event.StateChange.NewState
		record.Reason = event.StateChange.Reason
	}
	if event.Error != nil {
		record.Error = event.Error.Message
		record.ErrorContext = event.Error.Context
	}
	return record
}

// RunExport writes the log file as JSONL or CSV. An empty output path means
// stdout.
func RunExport(path, format, output string) error {
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(path, w)
	case "csv":
		return exportCSV(path, w)
	default:
		return fmt.Errorf("unknown format %q (jsonl, csv)", format)
	}
}

func exportJSONL(path string, w io.Writer) error {
	encoder := json.NewEncoder(w)
	return forEachEvent(path, func(event log.Event) error {
		return encoder.Encode(toRecord(event))
	})
}

func exportCSV(path string, w io.Writer) error {
	writer := csv.NewWriter(w)
	header := []string{
		"timestamp", "connection_id", "direction", "category",
		"remote_addr", "device_id", "text", "kind",
		"old_state", "new_state", "reason", "error", "error_context",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	err := forEachEvent(path, func(event log.Event) error {
		r := toRecord(event)
		return writer.Write([]string{
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			r.ConnectionID, r.Direction, r.Category,
			r.RemoteAddr, r.DeviceID, r.Text, r.Kind,
			r.OldState, r.NewState, r.Reason, r.Error, r.ErrorContext,
		})
	})
	if err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}

func forEachEvent(path string, fn func(log.Event) error) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}
