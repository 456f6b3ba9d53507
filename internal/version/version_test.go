package version

import "testing"

func stamp(t *testing.T, version, commit, buildTime string) {
	t.Helper()
	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	t.Cleanup(func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	})
	Version, Commit, BuildTime = version, commit, buildTime
}

func TestString(t *testing.T) {
	stamp(t, "1.2.3", "abc1234", "2026-01-15T10:00:00Z")

	got := String()
	want := "1.2.3 (abc1234) built 2026-01-15T10:00:00Z"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestGet(t *testing.T) {
	stamp(t, "2.0.0", "def5678", "2026-02-01T00:00:00Z")

	info := Get()
	if info.Version != "2.0.0" || info.Commit != "def5678" || info.BuildTime != "2026-02-01T00:00:00Z" {
		t.Errorf("Get() = %+v, want stamped values", info)
	}
}

func TestUnstampedDefaults(t *testing.T) {
	if Version == "" || Commit == "" || BuildTime == "" {
		t.Error("build metadata variables must have non-empty defaults")
	}
}
