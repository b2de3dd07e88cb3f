package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DebugGating(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		wantDebug bool
		wantError bool
	}{
		{name: "debug on", debug: true, wantDebug: true, wantError: true},
		{name: "debug off", debug: false, wantDebug: false, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Options{Output: &buf, Format: FormatText, Debug: tt.debug})

			log.Debug("looking for set value function", Function("SCORM_CallLMSSetValue"))
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("looking for set value function")))

			log.Error("unknown verb", Verb("frobbed"), Err(errors.New("boom")))
			assert.Equal(t, tt.wantError, bytes.Contains(buf.Bytes(), []byte("verb=frobbed")))
		})
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Format: FormatJSON, Debug: true})

	log.Info("statement sent", StatementID("abc"), Element("cmi.suspend_data"))

	assert.Contains(t, buf.String(), `"statement_id":"abc"`)
	assert.Contains(t, buf.String(), `"element":"cmi.suspend_data"`)
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat(" JSON "))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat("yaml"))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Level(true))
	assert.Equal(t, slog.LevelError, Level(false))
}

func TestErr_Nil(t *testing.T) {
	attr := Err(nil)
	assert.Equal(t, "error", attr.Key)
}

func TestSwitch(t *testing.T) {
	var buf bytes.Buffer
	sw := NewSwitch(false)
	log := New(Options{Output: &buf, Switch: sw, Debug: true})

	log.Debug("hidden")
	assert.Empty(t, buf.String())
	assert.False(t, sw.Debug())

	sw.Set(true)
	log.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.True(t, sw.Debug())
}
