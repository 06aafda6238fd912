package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type ServerEnv = string

var (
	DevEnv     ServerEnv = "dev"
	StagingEnv ServerEnv = "staging"
	ProdEnv    ServerEnv = "prod"
)

const (
	GENERAL_CONFIG_KEY = "general-config"
	STORAGE_CONFIG_KEY = "storage-config"
)

// Env resolves configuration keys. Process environment wins over values
// read from a .env file; neither is written back.
type Env struct {
	file    map[string]string
	process bool
}

// LoadEnv reads path with godotenv when it exists. A missing file is not an error.
func LoadEnv(path string) (*Env, error) {
	e := &Env{file: map[string]string{}, process: true}
	if path == "" {
		return e, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return e, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	e.file = values
	return e, nil
}

// NewEnv builds an Env from explicit values, ignoring the process environment.
func NewEnv(values map[string]string) *Env {
	return &Env{file: values}
}

func (e *Env) lookup(key string) (string, bool) {
	if e.process {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
	}
	v, ok := e.file[key]
	return v, ok
}

func (e *Env) GetOrDefault(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *Env) GetIntOrDefault(key string, def int) (int, error) {
	v := e.GetOrDefault(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func (e *Env) GetBoolOrDefault(key string, def bool) (bool, error) {
	v := e.GetOrDefault(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func (e *Env) GetDurationOrDefault(key string, def time.Duration) (time.Duration, error) {
	v := e.GetOrDefault(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

type GeneralConfig struct {
	HTTPPort       string
	HTTPHost       string
	Env            string
	LogLevel       string
	RouterConfig   string
	RequestTimeout time.Duration
	RateLimitRPS   int
	RateLimitBurst int
}

func (gc *GeneralConfig) Key() string {
	return GENERAL_CONFIG_KEY
}

func (gc *GeneralConfig) Load(env *Env) error {
	var err error
	gc.HTTPPort = env.GetOrDefault("HTTP_PORT", "8080")
	gc.HTTPHost = env.GetOrDefault("HTTP_HOST", "localhost")
	gc.Env = env.GetOrDefault("ENV", DevEnv)
	gc.LogLevel = env.GetOrDefault("LOG_LEVEL", "INFO")
	gc.RouterConfig = env.GetOrDefault("ROUTER_CONFIG", "./config/router.toml")
	if gc.RequestTimeout, err = env.GetDurationOrDefault("REQUEST_TIMEOUT", 5*time.Second); err != nil {
		return err
	}
	if gc.RateLimitRPS, err = env.GetIntOrDefault("RATE_LIMIT_RPS", 20); err != nil {
		return err
	}
	if gc.RateLimitBurst, err = env.GetIntOrDefault("RATE_LIMIT_BURST", 40); err != nil {
		return err
	}
	return gc.Validate()
}

func (gc *GeneralConfig) Validate() error {
	if gc.HTTPPort == "" || gc.HTTPHost == "" || gc.Env == "" {
		return errors.New("invalid server config")
	}
	if gc.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

func (gc *GeneralConfig) Addr() string {
	return gc.HTTPHost + ":" + gc.HTTPPort
}
