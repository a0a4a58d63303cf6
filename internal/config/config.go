package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultPort = 4000

type Config struct {
	ListenPort      int           // 0 => take "port" from the relays file, then DefaultPort
	LoopbackOnly    *bool         // nil => take "loopback-only" from the relays file
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "" => take "log-level" from the relays file, then "info"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	ConfigFile     string        // user relays file (yaml)
	StateFile      string        // durable identity record (yaml), used when Redis is not configured
	DeviceIDFile   string        // persisted SSDP device uuid
	ReloadInterval time.Duration // 0 => periodic reload disabled
	RestartDelay   time.Duration // fixed delay between a relay failure and its restart

	FFmpegPath     string // ffmpeg binary used by the relay engine
	WorkerPoolSize int    // 0 => unbounded relay supervision pool

	SSDPEnabled  bool
	SSDPInterval time.Duration // interval between SSDP alive notifications

	CORSOrigin   string   // Access-Control-Allow-Origin value, "" disables CORS headers
	AllowedHosts []string // Host headers accepted on /api, empty => any
	AllowedCIDRS []string // optional, restrict access to the control surface
	TrustProxy   bool     // true => trust X-Forwarded-For headers

	RateLimitBurst     int // mutations allowed in a burst per client IP
	RateLimitPerMinute int // mutation tokens refilled per client IP per minute

	// Redis (optional durable identity store)
	RedisAddr           string        // "" => file store
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenvInt("RESTREAMER_LISTEN_PORT", 0),
		LoopbackOnly:    optionalBool("RESTREAMER_LOOPBACK_ONLY"),
		ShutdownTimeout: mustDuration("RESTREAMER_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("RESTREAMER_LOG_LEVEL", ""),
		PrettyLog: mustBool("RESTREAMER_PRETTY_LOG", true),

		// Files
		ConfigFile:     getenv("RESTREAMER_CONFIG_FILE", "/etc/restreamer/restreamer.yaml"),
		StateFile:      getenv("RESTREAMER_STATE_FILE", "/var/lib/restreamer/identities.yaml"),
		DeviceIDFile:   getenv("RESTREAMER_DEVICE_ID_FILE", "/var/lib/restreamer/device-uuid"),
		ReloadInterval: mustDuration("RESTREAMER_RELOAD_INTERVAL", 0),
		RestartDelay:   mustDuration("RESTREAMER_RESTART_DELAY", 5*time.Second),

		// Relay engine
		FFmpegPath:     getenv("RESTREAMER_FFMPEG_PATH", "ffmpeg"),
		WorkerPoolSize: getenvInt("RESTREAMER_WORKER_POOL_SIZE", 0),

		// Discovery
		SSDPEnabled:  mustBool("RESTREAMER_SSDP_ENABLED", true),
		SSDPInterval: mustDuration("RESTREAMER_SSDP_INTERVAL", 30*time.Second),

		// Access restrictions
		CORSOrigin:   getenv("RESTREAMER_CORS_ORIGIN", "*"),
		AllowedHosts: splitAndTrim(getenv("RESTREAMER_ALLOWED_HOSTS", "")),
		AllowedCIDRS: splitAndTrim(getenv("RESTREAMER_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("RESTREAMER_TRUST_PROXY", false),

		RateLimitBurst:     getenvInt("RESTREAMER_RATE_LIMIT_BURST", 20),
		RateLimitPerMinute: getenvInt("RESTREAMER_RATE_LIMIT_PER_MINUTE", 60),

		// Redis settings
		RedisAddr:           getenv("RESTREAMER_REDIS_ADDR", ""),
		RedisUser:           getenv("RESTREAMER_REDIS_USERNAME", ""),
		RedisPassword:       getenv("RESTREAMER_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("RESTREAMER_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
	}

	if cfg.RestartDelay <= 0 {
		panic(fmt.Sprintf("❌ FATAL: RESTREAMER_RESTART_DELAY must be > 0, got %v", cfg.RestartDelay))
	}

	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// FileSettings are the global settings carried by the relays file.
type FileSettings struct {
	LogLevel     string
	Port         int
	LoopbackOnly bool
}

// Resolve fills unset environment values from the relays file.
// Environment always wins.
func (c *Config) Resolve(fs FileSettings) {
	if c.LogLevel == "" {
		c.LogLevel = fs.LogLevel
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ListenPort == 0 {
		c.ListenPort = fs.Port
	}
	if c.ListenPort == 0 {
		c.ListenPort = DefaultPort
	}
	if c.LoopbackOnly == nil {
		v := fs.LoopbackOnly
		c.LoopbackOnly = &v
	}
}

// ListenAddr is the HTTP listen address derived from port and loopback flag.
func (c *Config) ListenAddr() string {
	if c.LoopbackOnly != nil && *c.LoopbackOnly {
		return fmt.Sprintf("127.0.0.1:%d", c.ListenPort)
	}
	return fmt.Sprintf(":%d", c.ListenPort)
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func optionalBool(key string) *bool {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
