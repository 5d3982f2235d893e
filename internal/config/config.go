package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Variant selects how the user profile is obtained after the code exchange.
type Variant string

const (
	// VariantDirect fetches the profile with a bearer GET against the
	// provider user-info endpoint.
	VariantDirect Variant = "direct"
	// VariantMiniapp verifies and decrypts the signed payload delivered
	// alongside the session key (Mini Program flow).
	VariantMiniapp Variant = "miniapp"
)

// WechatProvider es la configuración del provider WeChat.
type WechatProvider struct {
	Enabled   bool   `yaml:"enabled"`
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`

	// RedirectURL es el callback registrado. Si SendRedirectURI es false no
	// se envía como query param (el provider usa la URI pre-registrada).
	RedirectURL     string `yaml:"redirect_url"`
	SendRedirectURI bool   `yaml:"send_redirect_uri"`

	// DefaultScope se usa cuando el caller no pide scopes explícitos.
	DefaultScope string `yaml:"default_scope"`

	// UIDField: campo del perfil usado como identificador único
	// ("openid" | "unionid").
	UIDField string `yaml:"uid_field"`

	// Variant: "direct" | "miniapp".
	Variant Variant `yaml:"variant"`
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	// State firma el JWT de round-trip entre request y callback phase.
	State struct {
		Secret string `yaml:"secret"`
		TTL    string `yaml:"ttl"`
	} `yaml:"state"`

	Providers struct {
		Wechat WechatProvider `yaml:"wechat"`
	} `yaml:"providers"`
}

// Load lee el YAML (si path no está vacío), aplica defaults, pisa con env
// y valida. Los errores de configuración son fatales al arranque: ningún
// request debe llegar a un provider a medio configurar.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "5m"
	}
	if c.State.TTL == "" {
		c.State.TTL = "10m"
	}
	if c.Providers.Wechat.DefaultScope == "" {
		c.Providers.Wechat.DefaultScope = "snsapi_userinfo"
	}
	if c.Providers.Wechat.UIDField == "" {
		c.Providers.Wechat.UIDField = "openid"
	}
	if c.Providers.Wechat.Variant == "" {
		c.Providers.Wechat.Variant = VariantDirect
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate chequea los valores críticos. Missing app credentials while the
// provider is enabled is a startup error, never a per-request one.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Cache.Memory.DefaultTTL); err != nil {
		return fmt.Errorf("cache.memory.default_ttl: %w", err)
	}
	if _, err := time.ParseDuration(c.State.TTL); err != nil {
		return fmt.Errorf("state.ttl: %w", err)
	}

	w := c.Providers.Wechat
	if w.Enabled {
		if strings.TrimSpace(w.AppID) == "" {
			return errors.New("providers.wechat: app_id required when enabled")
		}
		if strings.TrimSpace(w.AppSecret) == "" {
			return errors.New("providers.wechat: app_secret required when enabled")
		}
		switch w.Variant {
		case VariantDirect, VariantMiniapp:
		default:
			return fmt.Errorf("providers.wechat.variant: unknown variant %q", w.Variant)
		}
		switch w.UIDField {
		case "openid", "unionid":
		default:
			return fmt.Errorf("providers.wechat.uid_field: unknown field %q", w.UIDField)
		}
		if w.SendRedirectURI && strings.TrimSpace(w.RedirectURL) == "" {
			return errors.New("providers.wechat: redirect_url required when send_redirect_uri is true")
		}
	}

	if strings.EqualFold(c.App.Env, "prod") && strings.TrimSpace(c.State.Secret) == "" {
		return errors.New("state.secret required in prod")
	}
	return nil
}

// StateTTL retorna el TTL parseado del state token.
// Validate ya garantizó que parsea.
func (c *Config) StateTTL() time.Duration {
	d, _ := time.ParseDuration(c.State.TTL)
	return d
}

// MemoryTTL retorna el TTL default del cache en memoria.
func (c *Config) MemoryTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.Memory.DefaultTTL)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("CACHE_MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	}

	// STATE
	if v, ok := getEnvStr("STATE_SECRET"); ok {
		c.State.Secret = v
	}
	if v, ok := getEnvStr("STATE_TTL"); ok {
		c.State.TTL = v
	}

	// WECHAT
	if v, ok := getEnvBool("WECHAT_ENABLED"); ok {
		c.Providers.Wechat.Enabled = v
	}
	if v, ok := getEnvStr("WECHAT_APP_ID"); ok {
		c.Providers.Wechat.AppID = v
	}
	if v, ok := getEnvStr("WECHAT_APP_SECRET"); ok {
		c.Providers.Wechat.AppSecret = v
	}
	if v, ok := getEnvStr("WECHAT_REDIRECT_URL"); ok {
		c.Providers.Wechat.RedirectURL = v
	}
	if v, ok := getEnvBool("WECHAT_SEND_REDIRECT_URI"); ok {
		c.Providers.Wechat.SendRedirectURI = v
	}
	if v, ok := getEnvStr("WECHAT_DEFAULT_SCOPE"); ok {
		c.Providers.Wechat.DefaultScope = v
	}
	if v, ok := getEnvStr("WECHAT_UID_FIELD"); ok {
		c.Providers.Wechat.UIDField = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvStr("WECHAT_VARIANT"); ok {
		c.Providers.Wechat.Variant = Variant(strings.ToLower(strings.TrimSpace(v)))
	}
}
