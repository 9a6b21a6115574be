package metrics

import "fmt"

// Lifetime classifies how long a stored value survives.
type Lifetime int

const (
	// Ping values are cleared once they have been snapshotted into a submitted ping.
	Ping Lifetime = iota
	// Application values live for one run of the process and are cleared at startup.
	Application
	// User values survive restarts and submissions until explicitly reset.
	User
)

// Lifetimes lists every lifetime, in storage order.
var Lifetimes = []Lifetime{Ping, Application, User}

func (l Lifetime) String() string {
	switch l {
	case Ping:
		return "ping"
	case Application:
		return "application"
	case User:
		return "user"
	}
	return fmt.Sprintf("lifetime(%d)", int(l))
}

// ParseLifetime is the inverse of String.
func ParseLifetime(s string) (Lifetime, error) {
	for _, l := range Lifetimes {
		if l.String() == s {
			return l, nil
		}
	}
	return Ping, fmt.Errorf("unknown lifetime %q", s)
}

// ClearedOnSubmit reports whether values are dropped after a ping submission.
func (l Lifetime) ClearedOnSubmit() bool { return l == Ping }

// ClearedOnStart reports whether values are dropped by process-start housekeeping.
func (l Lifetime) ClearedOnStart() bool { return l == Application }

func (l Lifetime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Lifetime) UnmarshalText(b []byte) error {
	parsed, err := ParseLifetime(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
