// Package commands implements the altitude-log CLI commands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/altitude-protocol/altitude-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	ConnID    string
	Direction *log.Direction
	Category  *log.Category
}

// ParseDirectionFlag converts a -direction flag value.
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	case "local":
		return log.DirectionLocal, nil
	default:
		return 0, fmt.Errorf("invalid direction %q (in, out, local)", s)
	}
}

// ParseCategoryFlag converts a -category flag value.
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "line":
		return log.CategoryLine, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category %q (line, state, error)", s)
	}
}

// RunView prints the log file in human-readable form.
func RunView(path string, filter ViewFilter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, log.Filter{
		ConnectionID: filter.ConnID,
		Direction:    filter.Direction,
		Category:     filter.Category,
	})
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
		formatEvent(w, event)
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)

	switch {
	case event.Line != nil:
		arrow := "<-"
		if event.Direction == log.DirectionOut {
			arrow = "->"
		}
		kind := ""
		if event.Line.Kind != "" {
			kind = " (" + event.Line.Kind + ")"
		}
		fmt.Fprintf(w, "%s [conn:%s] %s %s%s\n", ts, connID, arrow, event.Line.Text, kind)

	case event.StateChange != nil:
		reason := ""
		if event.StateChange.Reason != "" {
			reason = ": " + event.StateChange.Reason
		}
		fmt.Fprintf(w, "%s [conn:%s] == %s -> %s%s\n",
			ts, connID, event.StateChange.OldState, event.StateChange.NewState, reason)

	case event.Error != nil:
		context := ""
		if event.Error.Context != "" {
			context = " (" + event.Error.Context + ")"
		}
		fmt.Fprintf(w, "%s [conn:%s] !! %s%s\n", ts, connID, event.Error.Message, context)

	default:
		fmt.Fprintf(w, "%s [conn:%s] %s %s\n", ts, connID, event.Direction, event.Category)
	}
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
