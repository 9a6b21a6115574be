// Package ping assembles stored metrics into documents ready for upload.
package ping

import "errors"

var (
	// ErrEmptyPing means there was nothing to send and the ping does not
	// ask to be sent when empty.
	ErrEmptyPing = errors.New("ping: no metrics to send")
)

// Type describes a ping. Its Name is also the name of the metric store the
// ping is assembled from.
type Type struct {
	Name            string
	IncludeClientID bool
	SendIfEmpty     bool
	ReasonCodes     []string
}

// AcceptsReason reports whether reason may be sent with this ping. The empty
// reason is always accepted.
func (t Type) AcceptsReason(reason string) bool {
	if reason == "" {
		return true
	}
	for _, r := range t.ReasonCodes {
		if r == reason {
			return true
		}
	}
	return false
}
