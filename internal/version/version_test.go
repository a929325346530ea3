package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	Version, GitCommit, BuildTime = "1.2.3", "abc1234", "2026-01-01T00:00:00Z"
	t.Cleanup(func() { Version, GitCommit, BuildTime = "dev", "unknown", "unknown" })

	info := Get()
	if info.Version != "1.2.3" || info.GitCommit != "abc1234" {
		t.Errorf("Get() = %+v, want injected build values", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %s, want %s", info.GoVersion, runtime.Version())
	}
	if !strings.HasPrefix(info.String(), "Envoy playground 1.2.3 (abc1234)") {
		t.Errorf("String() = %q", info.String())
	}
}
