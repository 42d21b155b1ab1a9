package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMustLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "STORE_DRIVER", "EDIT_WINDOW", "LOG_LEVEL", "WS_EVENTS_PER_SEC", "UPLOAD_MAX_BYTES"} {
		t.Setenv(k, "")
	}
	cfg := MustLoad()

	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, "sqlite", cfg.StoreDriver)
	require.Equal(t, 10*time.Minute, cfg.EditWindow)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
	require.Equal(t, 20.0, cfg.WSEventsPerSec)
	require.Equal(t, int64(10<<20), cfg.UploadMaxBytes)
}

func TestMustLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("EDIT_WINDOW", "90s")
	t.Setenv("DELETE_WINDOW", "-1s")
	t.Setenv("TYPING_TIMEOUT", "500ms")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WS_SEND_BUFFER", "nope")

	cfg := MustLoad()

	require.Equal(t, "postgres", cfg.StoreDriver)
	require.Equal(t, 90*time.Second, cfg.EditWindow)
	require.Equal(t, 10*time.Minute, cfg.DeleteWindow)
	require.Equal(t, 500*time.Millisecond, cfg.TypingTimeout)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
	require.Equal(t, 256, cfg.WSSendBuffer)
}
