package model

// SessionID is the opaque token addressing a session. Comparisons are exact and case-sensitive.
type SessionID string

// PlayerID is the server-issued opaque token identifying a player within a session.
// It is stable across reconnects.
type PlayerID string

// PlayerNumber is the fixed slot a player occupies in a session
type PlayerNumber int

const (
	PlayerOne PlayerNumber = 1
	PlayerTwo PlayerNumber = 2
)

// PlayerNumbers lists every slot in ascending order
var PlayerNumbers = [...]PlayerNumber{PlayerOne, PlayerTwo}

// Valid reports whether n is one of the two slots
func (n PlayerNumber) Valid() bool {
	return n == PlayerOne || n == PlayerTwo
}

// Index returns the zero-based slot index (player number - 1)
func (n PlayerNumber) Index() int {
	return int(n) - 1
}

// Other returns the opposing player number
func (n PlayerNumber) Other() PlayerNumber {
	if n == PlayerOne {
		return PlayerTwo
	}
	return PlayerOne
}
