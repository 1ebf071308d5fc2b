package logger

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBufferKeepsMostRecent(t *testing.T) {
	buf := NewBuffer(3)
	log := zap.New(buf.Core(zapcore.InfoLevel))

	for i := 0; i < 5; i++ {
		log.Info(fmt.Sprintf("line %d", i), zap.Int("n", i))
	}
	log.Debug("hidden")

	got := buf.Recent(0)
	require.Len(t, got, 3)
	assert.Equal(t, "line 2", got[0].Message)
	assert.Equal(t, "line 4", got[2].Message)
	assert.Equal(t, int64(4), got[2].Fields["n"])
	assert.Equal(t, uint64(5), buf.Total())

	last := buf.Recent(1)
	require.Len(t, last, 1)
	assert.Equal(t, "line 4", last[0].Message)
}

func TestBufferWithFields(t *testing.T) {
	buf := NewBuffer(8)
	log := zap.New(buf.Core(zapcore.DebugLevel)).Named("launchpad").With(zap.String("component", "test"))
	log.Warn("careful")

	got := buf.Recent(10)
	require.Len(t, got, 1)
	assert.Equal(t, "warn", got[0].Level)
	assert.Equal(t, "launchpad", got[0].Logger)
	assert.Equal(t, "test", got[0].Fields["component"])
}

func TestNewWritesToFileAndExtraCores(t *testing.T) {
	buf := NewBuffer(8)
	cfg := DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "launchpad.log")
	cfg.Quiet = true

	l, err := New(cfg, buf.Core(zapcore.InfoLevel))
	require.NoError(t, err)

	mint := solana.NewWallet().PublicKey()
	l.WithAsset(mint).Info("asset event")
	l.WithOperation("buy").Info("operation")
	end := l.TrackPerformance("quote")
	end()
	require.NoError(t, l.Sync())

	got := buf.Recent(0)
	require.Len(t, got, 2)
	assert.Equal(t, mint.String(), got[0].Fields["mint"])
	assert.NotEmpty(t, got[1].Fields["correlation_id"])
	assert.FileExists(t, cfg.LogFile)
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "abcd...wxyz", ShortAddress("abcdefghijklmnopqrstuvwxyz"))
	assert.Equal(t, "short", ShortAddress("short"))
}
