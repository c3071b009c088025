// Package transcript holds the ordered conversation log for one session
// and renders it to a persisted markdown document.
package transcript

import (
	"strings"
	"time"
)

// Role tags a turn with its speaker.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Label returns the human-readable label used in persisted documents.
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Turn is a single role-tagged message. Immutable once appended.
type Turn struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// Transcript is the append-only turn log for one agent session.
// It is owned by a single agent; turns are appended one at a time by the
// orchestrator, never concurrently, so no locking is needed.
type Transcript struct {
	turns     []Turn
	startedAt time.Time
}

// New creates an empty transcript with the session start time set to now.
func New() *Transcript {
	return &Transcript{startedAt: time.Now()}
}

// Append adds a turn with the current timestamp and returns it.
func (t *Transcript) Append(role Role, content string) Turn {
	turn := Turn{Role: role, Content: content, Timestamp: time.Now()}
	t.turns = append(t.turns, turn)
	return turn
}

// Turns returns a copy of the turn log.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len reports the number of turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// Empty reports whether no turns have been appended.
func (t *Transcript) Empty() bool {
	return len(t.turns) == 0
}

// StartedAt returns the session start time.
func (t *Transcript) StartedAt() time.Time {
	return t.startedAt
}

// Reset clears the turn log and restarts the session clock.
// Called after a successful save-and-summarize cycle.
func (t *Transcript) Reset() {
	t.turns = nil
	t.startedAt = time.Now()
}

// Last returns the most recent turn and true, or a zero turn and false.
func (t *Transcript) Last() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// Render formats the turn log as markdown lines without the title heading.
// One line per turn: "<timestamp> **<role-label>**: <content>".
func (t *Transcript) Render(timeFormat string) string {
	var b strings.Builder
	for _, turn := range t.turns {
		b.WriteString(turn.Timestamp.Format(timeFormat))
		b.WriteString(" **")
		b.WriteString(turn.Role.Label())
		b.WriteString("**: ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	return b.String()
}
