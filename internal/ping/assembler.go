package ping

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thisdougb/telemetry/internal/config"
	"github.com/thisdougb/telemetry/internal/errorrec"
	"github.com/thisdougb/telemetry/internal/metrics"
	"github.com/thisdougb/telemetry/internal/storage"
)

// AppInfo is what the host application reports about itself.
type AppInfo struct {
	AppBuild          string
	AppDisplayVersion string
	Channel           string
	Locale            string
}

// Assembler builds ping documents from the metric store. It must only be used
// from the dispatcher worker.
type Assembler struct {
	engine *storage.Engine
	app    AppInfo
	system metrics.SystemInfo
	now    func() time.Time
}

// NewAssembler returns an assembler reading from engine.
func NewAssembler(engine *storage.Engine, app AppInfo) *Assembler {
	return &Assembler{
		engine: engine,
		app:    app,
		system: metrics.System(),
		now:    time.Now,
	}
}

// Collect snapshots the store of t into a new document, allocating its
// document id and sequence number. It returns ErrEmptyPing when only internal
// metrics are stored and t is not sent when empty. The store is left as is.
func (a *Assembler) Collect(ctx context.Context, t Type, reason string) (*Document, error) {
	if !t.AcceptsReason(reason) {
		config.LogWarn(ctx, "dropping undeclared ping reason",
			zap.String("ping", t.Name), zap.String("reason", reason))
		reason = ""
	}

	entries, err := a.engine.Snapshot(t.Name)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", t.Name, err)
	}
	if !t.SendIfEmpty && !hasContent(entries) {
		return nil, ErrEmptyPing
	}

	seq, err := a.engine.NextSequence(t.Name)
	if err != nil {
		return nil, fmt.Errorf("sequence %s: %w", t.Name, err)
	}

	client, err := a.clientInfo(t.IncludeClientID)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Name: t.Name,
		PingInfo: Info{
			Seq:        seq,
			DocumentID: uuid.NewString(),
			Reason:     reason,
			EndTime:    formatTime(a.now()),
		},
		ClientInfo: client,
		Metrics:    groupMetrics(entries),
	}
	return doc, nil
}

func (a *Assembler) clientInfo(includeClientID bool) (ClientInfo, error) {
	info := ClientInfo{
		AppBuild:          a.app.AppBuild,
		AppDisplayVersion: a.app.AppDisplayVersion,
		AppChannel:        a.app.Channel,
		Locale:            a.app.Locale,
		OS:                a.system.OS,
		Architecture:      a.system.Architecture,
		SDKBuild:          a.system.SDKBuild,
	}

	var err error
	if info.FirstRunDate, err = FirstRunDate(a.engine); err != nil {
		return info, fmt.Errorf("read first run date: %w", err)
	}
	if includeClientID {
		if info.ClientID, err = ClientID(a.engine); err != nil {
			return info, fmt.Errorf("read client id: %w", err)
		}
	}
	return info, nil
}

func hasContent(entries []storage.Entry) bool {
	for _, e := range entries {
		if !errorrec.IsInternal(e.Identifier) {
			return true
		}
	}
	return false
}

func groupMetrics(entries []storage.Entry) map[string]map[string]interface{} {
	if len(entries) == 0 {
		return nil
	}

	out := make(map[string]map[string]interface{})
	group := func(name string) map[string]interface{} {
		g, ok := out[name]
		if !ok {
			g = make(map[string]interface{})
			out[name] = g
		}
		return g
	}

	for _, e := range entries {
		base, label := metrics.SplitIdentifier(e.Identifier)
		if label == "" {
			group(string(e.Value.Kind))[base] = e.Value.Payload()
			continue
		}
		labelled := group("labeled_" + string(e.Value.Kind))
		byLabel, ok := labelled[base].(map[string]interface{})
		if !ok {
			byLabel = make(map[string]interface{})
			labelled[base] = byLabel
		}
		byLabel[label] = e.Value.Payload()
	}
	return out
}
