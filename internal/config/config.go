package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr      string
	JWTSecret string
	JWTTTLMin int
	LogLevel  slog.Level

	StoreDriver string
	SQLITEDsn   string
	PostgresDsn string

	EditWindow    time.Duration
	DeleteWindow  time.Duration
	TypingTimeout time.Duration

	WSSendBuffer   int
	WSEventsPerSec float64
	WSEventsBurst  int

	UploadDir      string
	UploadBaseURL  string
	UploadMaxBytes int64
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val != "" {
		return val
	}
	return def
}

func getint(key string, def int) int {
	v, err := strconv.Atoi(getenv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getduration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(getenv(key, ""))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getlevel(key string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(getenv(key, "INFO")))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func MustLoad() Config {
	rate, err := strconv.ParseFloat(getenv("WS_EVENTS_PER_SEC", "20"), 64)
	if err != nil {
		rate = 20
	}
	maxBytes, err := strconv.ParseInt(getenv("UPLOAD_MAX_BYTES", ""), 10, 64)
	if err != nil {
		maxBytes = 10 << 20
	}

	cfg := Config{
		Addr:      getenv("HTTP_ADDR", ":8080"),
		JWTSecret: getenv("JWT_SECRET", ""),
		JWTTTLMin: getint("JWT_TTL_MIN", 1440),
		LogLevel:  getlevel("LOG_LEVEL"),

		StoreDriver: strings.ToLower(getenv("STORE_DRIVER", "sqlite")),
		SQLITEDsn:   getenv("SQLITE_DSN", "file:chat.db?_pragma=foreign_keys(ON)"),
		PostgresDsn: getenv("POSTGRES_DSN", ""),

		EditWindow:    getduration("EDIT_WINDOW", 10*time.Minute),
		DeleteWindow:  getduration("DELETE_WINDOW", 10*time.Minute),
		TypingTimeout: getduration("TYPING_TIMEOUT", 3*time.Second),

		WSSendBuffer:   getint("WS_SEND_BUFFER", 256),
		WSEventsPerSec: rate,
		WSEventsBurst:  getint("WS_EVENTS_BURST", 40),

		UploadDir:      getenv("UPLOAD_DIR", "uploads"),
		UploadBaseURL:  getenv("UPLOAD_BASE_URL", "/uploads"),
		UploadMaxBytes: maxBytes,
	}
	return cfg
}
