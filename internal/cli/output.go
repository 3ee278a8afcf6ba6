package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mcoot/duelsync-go/internal/api/response"
	"github.com/mcoot/duelsync-go/internal/protocol"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

// PrintFrame outputs one server frame. JSON output is one object per line.
func (o *Output) PrintFrame(f Frame) {
	if o.format == "json" {
		data, _ := json.Marshal(StreamEvent{Time: f.Time, Type: f.Event.Tag(), Payload: f.Payload})
		fmt.Fprintln(o.w, string(data))
		return
	}
	fmt.Fprintf(o.w, "[%s] %s: %s\n", f.Time.Format("15:04:05.000"), f.Event.Tag(), describeEvent(f.Event))
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Health:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
		fmt.Fprintf(o.w, "Storage: %s\n", v.Storage)
	case response.Session:
		o.printSession(v)
	case response.SessionList:
		o.printSessionList(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printSession(s response.Session) {
	fmt.Fprintf(o.w, "Session: %s\n", s.ID)
	fmt.Fprintf(o.w, "Status: %s\n", s.Status)
	fmt.Fprintf(o.w, "Ticks: %d\n", s.Ticks)
	fmt.Fprintf(o.w, "Created: %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(o.w, "Players (%d):\n", len(s.Players))
	for _, p := range s.Players {
		connStr := "disconnected"
		if p.Connected {
			connStr = "connected"
		}
		fmt.Fprintf(o.w, "  %d. %s (%s)\n", p.PlayerNumber, p.PlayerID, connStr)
	}
}

func (o *Output) printSessionList(l response.SessionList) {
	if len(l.Sessions) == 0 {
		fmt.Fprintln(o.w, "No sessions")
		return
	}
	for _, s := range l.Sessions {
		connected := 0
		for _, p := range s.Players {
			if p.Connected {
				connected++
			}
		}
		fmt.Fprintf(o.w, "%s  %-16s  players %d/%d  ticks %d\n", s.ID, s.Status, connected, len(s.Players), s.Ticks)
	}
}

func describeEvent(ev protocol.ServerEvent) string {
	switch e := ev.(type) {
	case protocol.CreateNewSessionResponse:
		return describeJoined(e.Result)
	case protocol.JoinSessionResponse:
		return describeJoined(e.Result)
	case protocol.RejoinExistingSessionResponse:
		return describeJoined(e.Result)
	case protocol.StartSessionGameResponse:
		if !e.IsSuccess {
			return "failed: " + e.FailureMessage
		}
		return fmt.Sprintf("session %s is %s", e.Data.ID, e.Data.Status)
	case protocol.GameStatusUpdate:
		return fmt.Sprintf("session %s is now %s", e.SessionID, e.Status)
	case protocol.PositionsUpdate:
		parts := make([]string, 0, len(e.PlayerPositions))
		for i, p := range e.PlayerPositions {
			parts = append(parts, fmt.Sprintf("p%d (%.2f, %.2f)", i+1, p.X, p.Z))
		}
		if len(e.DamagePositions) > 0 {
			parts = append(parts, fmt.Sprintf("%d damage", len(e.DamagePositions)))
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

func describeJoined(res protocol.Result[protocol.SessionJoined]) string {
	if !res.IsSuccess {
		return "failed: " + res.FailureMessage
	}
	return fmt.Sprintf("session %s as player %s (%s)", res.Data.ID, res.Data.MyPlayerID, res.Data.Status)
}
