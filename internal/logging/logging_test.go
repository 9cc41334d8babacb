package logging

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

func TestPrependEncoder(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.LevelKey = zapcore.OmitKey
	encCfg.TimeKey = zapcore.OmitKey

	enc := &prependEncoder{
		Encoder: zapcore.NewConsoleEncoder(encCfg),
		pool:    buffer.NewPool(),
	}

	var out bytes.Buffer
	logger := zap.New(zapcore.NewCore(enc, zapcore.AddSync(&out), zapcore.DebugLevel))

	logger.Info("relay started", zap.String("platform", "groq"))
	logger.Warn("relay ended early")
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.True(t, bytes.HasPrefix(lines[0], []byte("[CHATPROXY] INFO | ")))
	assert.Contains(t, string(lines[0]), "relay started")
	assert.Contains(t, string(lines[0]), `"platform": "groq"`)
	assert.True(t, bytes.HasPrefix(lines[1], []byte("[CHATPROXY] WARN | ")))
}

func TestPrependEncoderKeepsContextFields(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.LevelKey = zapcore.OmitKey
	encCfg.TimeKey = zapcore.OmitKey

	enc := &prependEncoder{
		Encoder: zapcore.NewConsoleEncoder(encCfg),
		pool:    buffer.NewPool(),
	}

	var out bytes.Buffer
	logger := zap.New(zapcore.NewCore(enc, zapcore.AddSync(&out), zapcore.DebugLevel)).
		With(zap.String("request_id", "req-1"))

	logger.Info("forwarding request")
	require.NoError(t, logger.Sync())

	line := out.String()
	assert.True(t, bytes.HasPrefix(out.Bytes(), []byte("[CHATPROXY] INFO | ")))
	assert.Contains(t, line, `"request_id": "req-1"`)
}

func TestNew(t *testing.T) {
	prod := New("production")
	require.NotNil(t, prod)
	assert.False(t, prod.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, prod.Core().Enabled(zapcore.InfoLevel))

	dev := New("development")
	require.NotNil(t, dev)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
}
