package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Guard     GuardConfig     `yaml:"guard"`
	World     WorldConfig     `yaml:"world"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	NATS      NATSConfig      `yaml:"nats"`
	Maria     MariaConfig     `yaml:"maria"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	TCPPort     int    `yaml:"tcp_port"`
	RESTPort    int    `yaml:"rest_port"`
	MetricsPort int    `yaml:"metrics_port"`
	MaxPlayers  int    `yaml:"max_players"`
	Name        string `yaml:"name"`
}

// GuardConfig пороги и переключатели политики валидации пакетов.
// Все значения читаются на каждом сообщении; это входные данные, а не константы.
type GuardConfig struct {
	TileKillThreshold   int           `yaml:"tile_kill_threshold"`
	TilePlaceThreshold  int           `yaml:"tile_place_threshold"`
	TileLiquidThreshold int           `yaml:"tile_liquid_threshold"`
	ProjectileThreshold int           `yaml:"projectile_threshold"`
	ThresholdWindow     time.Duration `yaml:"threshold_window"`
	ThreatCooldown      time.Duration `yaml:"threat_cooldown"`

	MaxDamage     int `yaml:"max_damage"`
	MaxProjDamage int `yaml:"max_proj_damage"`
	MaxHealth     int `yaml:"max_health"`
	MaxMana       int `yaml:"max_mana"`

	RangeChecks         bool `yaml:"range_checks"`
	DefaultRange        int  `yaml:"default_range"`
	MaxRangeForDisabled int  `yaml:"max_range_for_disabled"`

	PreventDeadModification  bool `yaml:"prevent_dead_modification"`
	PreventInvalidPlaceStyle bool `yaml:"prevent_invalid_place_style"`
	IgnoreProjUpdate         bool `yaml:"ignore_proj_update"`
	IgnoreProjKill           bool `yaml:"ignore_proj_kill"`
	ProjIgnoreShrapnel       bool `yaml:"proj_ignore_shrapnel"`
	IgnoreNoClip             bool `yaml:"ignore_noclip"`

	RequireLogin           bool          `yaml:"require_login"`
	DisableUUIDLogin       bool          `yaml:"disable_uuid_login"`
	DisableLoginBeforeJoin bool          `yaml:"disable_login_before_join"`
	ServerPassword         string        `yaml:"server_password"`
	ServerSideCharacter    bool          `yaml:"server_side_character"`
	DisablePiggybanksOnSSC bool          `yaml:"disable_piggybanks_on_ssc"`
	LogonDiscardThreshold  time.Duration `yaml:"logon_discard_threshold"`

	PvPMode               string `yaml:"pvp_mode"`
	SpawnProtection       bool   `yaml:"spawn_protection"`
	SpawnProtectionRadius int    `yaml:"spawn_protection_radius"`
	DisableBuild          bool   `yaml:"disable_build"`
	RegionProtectChests   bool   `yaml:"region_protect_chests"`
	MediumcoreOnly        bool   `yaml:"mediumcore_only"`
	HardcoreOnly          bool   `yaml:"hardcore_only"`

	TeleportRangeCheck     bool `yaml:"teleport_range_check"`
	TeleportMaxRange       int  `yaml:"teleport_max_range"`
	ProtocolViolationLimit int  `yaml:"protocol_violation_limit"`

	HookSlowThreshold time.Duration `yaml:"hook_slow_threshold"`
	HookMaxFailures   int           `yaml:"hook_max_failures"`
}

// PvP режимы
const (
	PvPNormal   = "normal"
	PvPAlways   = "always"
	PvPDisabled = "disabled"
)

// DefaultGuardConfig возвращает значения по умолчанию.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		TileKillThreshold:        60,
		TilePlaceThreshold:       20,
		TileLiquidThreshold:      15,
		ProjectileThreshold:      50,
		ThresholdWindow:          time.Second,
		ThreatCooldown:           5 * time.Second,
		MaxDamage:                175,
		MaxProjDamage:            175,
		MaxHealth:                500,
		MaxMana:                  400,
		RangeChecks:              true,
		DefaultRange:             32,
		MaxRangeForDisabled:      10,
		PreventDeadModification:  true,
		PreventInvalidPlaceStyle: true,
		ProjIgnoreShrapnel:       true,
		DisablePiggybanksOnSSC:   true,
		LogonDiscardThreshold:    250 * time.Millisecond,
		PvPMode:                  PvPNormal,
		SpawnProtection:          true,
		SpawnProtectionRadius:    10,
		HookSlowThreshold:        50 * time.Millisecond,
		HookMaxFailures:          5,
	}
}

type WorldConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	SpawnX    int `yaml:"spawn_x"`
	SpawnY    int `yaml:"spawn_y"`
	MaxChests int `yaml:"max_chests"`

	// Сид генератора рельефа; 0 — плоская поверхность.
	Seed int64 `yaml:"seed"`
}

type AuthConfig struct {
	Backend   string        `yaml:"backend"` // memory | maria | mongo
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	// Файл групп прав; пусто — встроенные группы.
	GroupsFile string `yaml:"groups_file"`
}

type StorageConfig struct {
	BadgerPath string `yaml:"badger_path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	BansKey  string `yaml:"bans_key"`
}

type NATSConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	BansTopic string `yaml:"bans_topic"`
}

type MariaConfig struct {
	DSN string `yaml:"dsn"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

// Default возвращает полную конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Server: ServerConfig{MaxPlayers: 255, Name: "packetguard"},
		Guard:  DefaultGuardConfig(),
		World: WorldConfig{
			Width:     8400,
			Height:    2400,
			SpawnX:    4200,
			SpawnY:    300,
			MaxChests: 1000,
		},
		Auth:      AuthConfig{Backend: "memory", TokenTTL: 24 * time.Hour},
		Storage:   StorageConfig{BadgerPath: "data/journal"},
		Redis:     RedisConfig{BansKey: "itembans"},
		NATS:      NATSConfig{Stream: "PACKETGUARD", Retention: 24, BansTopic: "itembans.reload"},
		Mongo:     MongoConfig{Database: "packetguard"},
		Telemetry: TelemetryConfig{ServiceName: "packetguard"},
		Logging:   LoggingConfig{Dir: "logs", ConsoleLevel: "INFO", FileLevel: "DEBUG"},
	}
}

// GetTCPPort возвращает TCP порт с поддержкой fallback значений
func (s *ServerConfig) GetTCPPort() int {
	return getPortWithEnvFallback(s.TCPPort, "PACKETGUARD_TCP_PORT", 7777)
}

// GetRESTPort возвращает порт административного API
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "PACKETGUARD_REST_PORT", 8088)
}

// GetMetricsPort возвращает порт Prometheus метрик
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "PACKETGUARD_METRICS_PORT", 2112)
}

// GetJWTSecret возвращает секрет JWT: config -> env -> default
func (a *AuthConfig) GetJWTSecret() string {
	return getStringWithEnvFallback(a.JWTSecret, "PACKETGUARD_JWT_SECRET", "change-me")
}

// GetDSN возвращает строку подключения MariaDB
func (m *MariaConfig) GetDSN() string {
	return getStringWithEnvFallback(m.DSN, "PACKETGUARD_MARIA_DSN", "")
}

// GetURL возвращает адрес NATS
func (n *NATSConfig) GetURL() string {
	return getStringWithEnvFallback(n.URL, "NATS_URL", "")
}

// GetAddr возвращает адрес Redis
func (r *RedisConfig) GetAddr() string {
	return getStringWithEnvFallback(r.Addr, "REDIS_ADDR", "")
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

func getStringWithEnvFallback(configVal, envVar, def string) string {
	if configVal != "" {
		return configVal
	}
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return def
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV PACKETGUARD_CONFIG; если и он пуст — возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("PACKETGUARD_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность значений.
func (c *Config) Validate() error {
	g := &c.Guard
	switch g.PvPMode {
	case "", PvPNormal, PvPAlways, PvPDisabled:
	default:
		return fmt.Errorf("guard.pvp_mode: неизвестный режим %q", g.PvPMode)
	}
	if g.PvPMode == "" {
		g.PvPMode = PvPNormal
	}
	if g.ThresholdWindow <= 0 {
		return fmt.Errorf("guard.threshold_window должен быть > 0")
	}
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("world: некорректный размер %dx%d", c.World.Width, c.World.Height)
	}
	if c.Server.MaxPlayers <= 0 || c.Server.MaxPlayers > 255 {
		return fmt.Errorf("server.max_players должен быть в диапазоне 1..255")
	}
	switch c.Auth.Backend {
	case "", "memory", "maria", "mongo":
	default:
		return fmt.Errorf("auth.backend: неизвестный backend %q", c.Auth.Backend)
	}
	return nil
}
