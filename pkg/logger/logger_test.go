package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedactsStudentText(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(redactingCore{core}).With(zap.String("email", "jane.doe@csueastbay.edu"))

	l.Info("Upload resolved",
		zap.String("text", "I think the study was flawed"),
		zap.String("upload_id", "u1"),
		zap.Int("warnings", 2),
	)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, redacted, fields["text"])
	assert.Equal(t, redacted, fields["email"])
	assert.Equal(t, "u1", fields["upload_id"])
	assert.EqualValues(t, 2, fields["warnings"])
}

func TestRedactLeavesInputUntouched(t *testing.T) {
	in := []zapcore.Field{zap.String("reply", "What did they measure?"), zap.String("signal", "explicit_self_harm")}

	out := redact(in)

	assert.Equal(t, "What did they measure?", in[0].String)
	assert.Equal(t, redacted, out[0].String)
	assert.Equal(t, in[1], out[1])
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Init("loud", "json", "stdout"))
}

func TestForNamesComponent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := Log
	Log = zap.New(redactingCore{core})
	t.Cleanup(func() { Log = prev })

	For("ratelimit").Info("Client blocked")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "ratelimit", logs.All()[0].LoggerName)
}
