package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// SystemInfo holds the host facts reported in every ping's client_info block.
type SystemInfo struct {
	OS           string
	Architecture string
	GoVersion    string
	NumCPU       int
	SDKBuild     string
}

var (
	systemOnce sync.Once
	systemInfo SystemInfo
)

// System returns the host facts, collected once per process.
func System() SystemInfo {
	systemOnce.Do(func() {
		systemInfo = collectSystemInfo()
	})
	return systemInfo
}

func collectSystemInfo() SystemInfo {
	info := SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		SDKBuild:     "devel",
	}

	// the module version is only known when built as a dependency
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range bi.Deps {
			if dep.Path == "github.com/thisdougb/telemetry" {
				info.SDKBuild = dep.Version
			}
		}
	}
	return info
}
