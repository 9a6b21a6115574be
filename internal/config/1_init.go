package config

import (
	"context"
	"fmt"
	"runtime"
)

func init() {
	if BoolValue("TELEMETRY_DEBUG") {
		ctx := SetContextCorrelationId(context.Background(), "init")
		LogDebug(ctx, fmt.Sprintf("telemetry config.init(): arch: %v/%v", runtime.GOOS, runtime.GOARCH))
		LogDebug(ctx, "telemetry config initialized with environment variable defaults")
	}
}
