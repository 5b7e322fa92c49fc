package coremain

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pmkol/rrcache-x/mlog"
)

func writeConfig(t *testing.T, s string) string {
	t.Helper()
	f := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(f, []byte(s), 0o644))
	return f
}

func Test_loadConfig(t *testing.T) {
	f := writeConfig(t, `
log:
  level: debug
cache:
  size: "64"
  classes: [IN, ch, CLASS4]
  cleaner_interval: 30
api:
  http: 127.0.0.1:8080
`)
	cfg, v, err := loadConfig(f)
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 64, cfg.Cache.Size)
	assert.Equal(t, "127.0.0.1:8080", cfg.API.HTTP)

	classes, err := cfg.Cache.classes()
	require.NoError(t, err)
	assert.Equal(t, []uint16{dns.ClassINET, dns.ClassCHAOS, dns.ClassHESIOD}, classes)

	d, err := cfg.Cache.cleanerInterval()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func Test_loadConfig_errors(t *testing.T) {
	_, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, _, err = loadConfig(writeConfig(t, "cache:\n  sizes: 1\n"))
	assert.Error(t, err, "unknown keys must be rejected")
}

func TestConfig_Init(t *testing.T) {
	cfg := new(Config)
	cfg.Init()
	assert.Equal(t, defaultCacheSize, cfg.Cache.Size)
	assert.Equal(t, []string{"IN"}, cfg.Cache.Classes)
	assert.Equal(t, defaultAPIAddr, cfg.API.HTTP)

	cfg.Cache.Classes = []string{"NOPE"}
	_, err := cfg.Cache.classes()
	assert.Error(t, err)

	cfg.Cache.CleanerInterval = -1
	_, err = cfg.Cache.cleanerInterval()
	assert.Error(t, err)

	_, err = NewServer(cfg, nil)
	assert.Error(t, err)
}

func Test_configCmd(t *testing.T) {
	f := writeConfig(t, "cache:\n  size: 8\n")
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"config", "-c", f})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, Run())

	s := out.String()
	assert.Contains(t, s, "size: 8")
	assert.Contains(t, s, "- IN")
	assert.Contains(t, s, "http: 127.0.0.1:9091")
}

func Test_watchLogLevel(t *testing.T) {
	require.NoError(t, mlog.SetLevel("info"))
	t.Cleanup(func() { mlog.SetLevel("info") })

	f := writeConfig(t, "log:\n  level: info\n")
	_, v, err := loadConfig(f)
	require.NoError(t, err)
	watchLogLevel(v)

	// Replaced by rename so the watcher never reads a half written file.
	rewrite := func(s string) {
		tmp := f + ".tmp"
		require.NoError(t, os.WriteFile(tmp, []byte(s), 0o644))
		require.NoError(t, os.Rename(tmp, f))
	}

	rewrite("log:\n  level: debug\n")
	assert.Eventually(t, func() bool { return mlog.Level() == zap.DebugLevel }, 2*time.Second, 10*time.Millisecond)

	// An invalid level keeps the current one.
	rewrite("log:\n  level: loud\n")
	assert.Never(t, func() bool { return mlog.Level() != zap.DebugLevel }, 200*time.Millisecond, 10*time.Millisecond)

	// So does a config that fails to decode.
	rewrite("log:\n  level: error\n  colour: red\n")
	assert.Never(t, func() bool { return mlog.Level() != zap.DebugLevel }, 200*time.Millisecond, 10*time.Millisecond)

	// The watcher is still alive.
	rewrite("log:\n  level: warn\n")
	assert.Eventually(t, func() bool { return mlog.Level() == zap.WarnLevel }, 2*time.Second, 10*time.Millisecond)
}
