package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestLoggerLevels(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationEvaluate)
	testLogger.Warn("warning message")
	testLogger.Error("error message", fmt.Errorf("test error"), ErrorCodeKey, ErrorRefit)

	require.NotEmpty(t, buffer.String())
	assert.True(t, testLogger.ContainsMessage("debug message"))
	assert.True(t, testLogger.ContainsMessage("warning message"))
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "test error"))
	assert.True(t, testLogger.ContainsField(ErrorCodeKey, ErrorRefit))
}

func TestTestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	contextLogger := testLogger.With(ComponentKey, "cv", FoldsKey, 23)
	contextLogger.Info("fold done", FoldKey, 4)
	contextLogger.Debug("suppressed")

	entries := testLogger.EntriesWithMessage("fold done")
	require.Len(t, entries, 1)
	assert.Equal(t, "cv", entries[0][ComponentKey])
	assert.Equal(t, 23.0, entries[0][FoldsKey])
	assert.Equal(t, 4.0, entries[0][FoldKey])
	assert.False(t, testLogger.ContainsMessage("suppressed"))
	assert.False(t, testLogger.Enabled(context.Background(), LevelDebug))
}

func TestTestLoggerConcurrent(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				testLogger.Info("fold", FoldKey, id*10+j)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 80)
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo)

	logger.With(ComponentKey, "glm").Info("fit done", IterationKey, 5, DevianceKey, 12.25)
	logger.Debug("hidden")
	logger.Error("refit failed", errors.NewRefitError(2, []int{2}, errors.New("singular")), FoldKey, 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "glm", first[ComponentKey])
	assert.Equal(t, 5.0, first[IterationKey])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "error", second["level"])
	assert.Equal(t, "RefitError", second["type"])
	assert.Equal(t, 2.0, second["index"])
	assert.Contains(t, second["error"], "held-out index 2")

	assert.True(t, logger.Enabled(context.Background(), LevelWarn))
	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
}

func TestProviderSwap(t *testing.T) {
	provider, buffer := NewTestLoggerProvider(LevelDebug)
	SetProvider(provider)
	defer SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelWarn))

	GetLoggerWithName("resample").Info("named logger message")

	assert.Contains(t, buffer.String(), "named logger message")
	assert.Contains(t, buffer.String(), `"ml.component":"resample"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Panics(t, func() { ToLogLevel("verbose") })
}
