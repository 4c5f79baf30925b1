package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, o Options) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	Use(zap.New(core), o)
	t.Cleanup(func() { Use(nil, Options{}) })
	return logs
}

func TestGet_NamesLoggerByCategory(t *testing.T) {
	logs := observe(t, Options{})

	Get(CategoryPerception).Infof("intent %s", "SET_RATE")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "perception", entries[0].LoggerName)
	assert.Equal(t, "intent SET_RATE", entries[0].Message)
}

func TestGet_DisabledCategoryIsSilent(t *testing.T) {
	logs := observe(t, Options{Categories: map[string]bool{"simulator": false}})

	Get(CategorySimulator).Infof("should not appear")
	Get(CategoryGovernance).Infof("should appear")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "governance", entries[0].LoggerName)
	assert.False(t, IsCategoryEnabled(CategorySimulator))
	assert.True(t, IsCategoryEnabled(CategoryWorld), "absent categories default to enabled")
}

func TestGet_CachesPerCategory(t *testing.T) {
	observe(t, Options{})
	assert.Same(t, Get(CategoryAssets), Get(CategoryAssets))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"WARNING", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestInitialize_RejectsUnknownFormat(t *testing.T) {
	err := Initialize(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestAudit_WritesStructuredFields(t *testing.T) {
	logs := observe(t, Options{})

	AuditWithTurn("conv-1", "turn-1").TurnEnd("completed", "none", "ok", 25*time.Millisecond)

	entries := logs.FilterLoggerName("audit").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "turn_end", fields["event"])
	assert.Equal(t, "conv-1", fields["conversation"])
	assert.Equal(t, "turn-1", fields["turn"])
	assert.Equal(t, true, fields["success"])
}

func TestAudit_DisabledCategory(t *testing.T) {
	logs := observe(t, Options{Categories: map[string]bool{"audit": false}})

	Audit().GovernanceDecision("Denied", "v1", []string{"GCONPROD"})

	assert.Zero(t, logs.Len())
}
