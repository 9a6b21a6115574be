package telemetry

import "github.com/thisdougb/telemetry/internal/ping"

// PingOptions declares how a ping is sent.
type PingOptions struct {
	// IncludeClientID adds the client id to the document.
	IncludeClientID bool

	// SendIfEmpty sends the ping even when no metric was recorded.
	SendIfEmpty bool

	// ReasonCodes lists the reasons Submit accepts. Any other reason is
	// dropped from the document.
	ReasonCodes []string
}

// PingType is a declared ping. Metrics sent in it are collected into one
// document on Submit, and its ping lifetime metrics are cleared.
type PingType struct {
	client *Client
	t      ping.Type
}

func NewPingType(c *Client, name string, opts PingOptions) *PingType {
	return &PingType{
		client: c,
		t: ping.Type{
			Name:            name,
			IncludeClientID: opts.IncludeClientID,
			SendIfEmpty:     opts.SendIfEmpty,
			ReasonCodes:     append([]string(nil), opts.ReasonCodes...),
		},
	}
}

func (p *PingType) Name() string {
	return p.t.Name
}

// Submit assembles and queues the ping for upload. It never blocks.
func (p *PingType) Submit(reason string) {
	p.client.core.Submit(p.t, reason)
}
