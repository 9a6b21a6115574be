package core

import (
	"sync/atomic"

	"github.com/thisdougb/telemetry/internal/ping"
	"github.com/thisdougb/telemetry/internal/storage"
	"github.com/thisdougb/telemetry/internal/upload"
)

// Instance is the execution context handed to every dispatcher task. Apart
// from the atomic flag it is only touched by the dispatcher worker.
type Instance struct {
	engine        *storage.Engine
	assembler     *ping.Assembler
	uploads       *upload.Manager
	appID         string
	uploadEnabled atomic.Bool
	logPings      bool
}

// Engine is the metric store.
func (i *Instance) Engine() *storage.Engine {
	return i.engine
}

// UploadEnabled reports whether metrics are being collected and sent.
func (i *Instance) UploadEnabled() bool {
	return i.uploadEnabled.Load()
}
