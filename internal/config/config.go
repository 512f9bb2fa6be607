// Package config loads process-wide, boot-fixed server configuration
// from the environment, the teacher's env-first approach generalized
// to the documented option list (§6 Configuration).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the immutable, boot-time server configuration. Handlers
// receive it through the Server handle; they never read the environment
// directly (§6.1).
type Config struct {
	Bind string
	Port int

	AdminAddr     string // empty disables the admin HTTP plane
	AdminDevCORS  bool
	AdminPassword string // empty disables the admin login (plane still requires a session either way)

	Databases  int
	MaxClients int64
	MaxMemory  int64 // bytes, 0 = unbounded

	Timeout time.Duration // 0 = none

	SlowLogSlowerThan time.Duration
	SlowLogMaxLen     int

	ActiveExpireCycle time.Duration

	IntSetMaxEntries       int
	ListMaxListpackSize    int
	HashMaxListpackEntries int
	HashMaxListpackValue   int

	ClusterEnabled bool
	ReplicaOf      string // "host:port", empty disables replication forwarding

	RequirePass string // empty disables AUTH requirement
}

// Default returns the documented defaults (§6 Configuration) before any
// environment overrides are applied.
func Default() Config {
	return Config{
		Bind:                   "0.0.0.0",
		Port:                   6379,
		Databases:              16,
		MaxClients:             10000,
		MaxMemory:              0,
		Timeout:                0,
		SlowLogSlowerThan:      10000 * time.Microsecond,
		SlowLogMaxLen:          128,
		ActiveExpireCycle:      100 * time.Millisecond,
		IntSetMaxEntries:       512,
		ListMaxListpackSize:    8 * 1024,
		HashMaxListpackEntries: 128,
		HashMaxListpackValue:   64,
	}
}

// envString/envInt/envInt64/envBool/envDuration apply an override only
// when the variable is set, leaving the default otherwise — boot
// validation happens once in Load, never per-read.
func envString(key string, cur *string) {
	if v, ok := os.LookupEnv(key); ok {
		*cur = v
	}
}

func envInt(key string, cur *int) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*cur = n
	return nil
}

func envInt64(key string, cur *int64) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*cur = n
	return nil
}

func envBool(key string, cur *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*cur = b
	return nil
}

func envDurationMillis(key string, cur *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*cur = time.Duration(n) * time.Millisecond
	return nil
}

// Load builds Config from the process environment, starting from
// Default(). Returns an error naming the first malformed variable
// encountered; callers should treat a Load failure as fatal at boot.
func Load() (Config, error) {
	c := Default()

	envString("REDISD_BIND", &c.Bind)
	if err := envInt("REDISD_PORT", &c.Port); err != nil {
		return c, err
	}
	envString("REDISD_ADMIN_ADDR", &c.AdminAddr)
	if err := envBool("REDISD_ADMIN_DEV_CORS", &c.AdminDevCORS); err != nil {
		return c, err
	}
	envString("REDISD_ADMIN_PASSWORD", &c.AdminPassword)
	if err := envInt("REDISD_DATABASES", &c.Databases); err != nil {
		return c, err
	}
	if err := envInt64("REDISD_MAXCLIENTS", &c.MaxClients); err != nil {
		return c, err
	}
	if err := envInt64("REDISD_MAXMEMORY", &c.MaxMemory); err != nil {
		return c, err
	}
	if err := envDurationMillis("REDISD_TIMEOUT_MS", &c.Timeout); err != nil {
		return c, err
	}
	var slowlogMicros int64 = c.SlowLogSlowerThan.Microseconds()
	if err := envInt64("REDISD_SLOWLOG_LOG_SLOWER_THAN_US", &slowlogMicros); err != nil {
		return c, err
	}
	c.SlowLogSlowerThan = time.Duration(slowlogMicros) * time.Microsecond
	if err := envInt("REDISD_SLOWLOG_MAX_LEN", &c.SlowLogMaxLen); err != nil {
		return c, err
	}
	if err := envDurationMillis("REDISD_ACTIVE_EXPIRE_CYCLE_MS", &c.ActiveExpireCycle); err != nil {
		return c, err
	}
	if err := envInt("REDISD_INTSET_MAX_ENTRIES", &c.IntSetMaxEntries); err != nil {
		return c, err
	}
	if err := envInt("REDISD_HASH_MAX_LISTPACK_ENTRIES", &c.HashMaxListpackEntries); err != nil {
		return c, err
	}
	if err := envInt("REDISD_HASH_MAX_LISTPACK_VALUE", &c.HashMaxListpackValue); err != nil {
		return c, err
	}
	if err := envBool("REDISD_CLUSTER_ENABLED", &c.ClusterEnabled); err != nil {
		return c, err
	}
	envString("REDISD_REPLICAOF", &c.ReplicaOf)
	envString("REDISD_REQUIREPASS", &c.RequirePass)

	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) validate() error {
	if c.Databases <= 0 {
		return fmt.Errorf("databases must be positive, got %d", c.Databases)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("maxclients must be positive, got %d", c.MaxClients)
	}
	return nil
}

// Overlay holds the documented runtime-mutable subset of options
// (CONFIG SET), kept separate from the boot-fixed Config so the latter
// can stay a plain immutable value (§6.1).
type Overlay struct {
	SlowLogSlowerThan time.Duration
	MaxMemory         int64
	AppendOnly        bool
}

// NewOverlay seeds the overlay from the boot config's initial values.
func NewOverlay(c Config) *Overlay {
	return &Overlay{
		SlowLogSlowerThan: c.SlowLogSlowerThan,
		MaxMemory:         c.MaxMemory,
	}
}
