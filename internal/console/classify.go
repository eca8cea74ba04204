package console

import (
	"regexp"
	"strings"
)

// EventKind identifies the domain event derived from a console line.
type EventKind string

const (
	EventNone         EventKind = "none"
	EventJoin         EventKind = "join"
	EventLeave        EventKind = "leave"
	EventReady        EventKind = "ready"
	EventEulaRequired EventKind = "eula"
)

// Event is the classification result for one parsed line.
type Event struct {
	Kind   EventKind
	Player string
}

var (
	joinRe  = regexp.MustCompile(`^(\S+) joined the game$`)
	leaveRe = regexp.MustCompile(`^(\S+) left the game$`)
	readyRe = regexp.MustCompile(`^Done \([\d.,]+s\)! For help, type "help"`)
)

// Classify maps a parsed line to a domain event. Checks run in a fixed
// order: join, leave, ready, eula. Join/leave precede ready so a player
// name cannot shadow the later markers in the common case; a player
// whose name itself ends in "joined the game" can still be
// misclassified, which is a known unresolved edge case of the log
// format rather than something this function tries to outguess.
func Classify(pl ParsedLine) Event {
	if m := joinRe.FindStringSubmatch(pl.Message); m != nil {
		return Event{Kind: EventJoin, Player: m[1]}
	}
	if m := leaveRe.FindStringSubmatch(pl.Message); m != nil {
		return Event{Kind: EventLeave, Player: m[1]}
	}
	if readyRe.MatchString(pl.Message) {
		return Event{Kind: EventReady}
	}
	if pl.Thread == "main" && strings.Contains(pl.Message, "eula.txt") {
		return Event{Kind: EventEulaRequired}
	}
	return Event{Kind: EventNone}
}
