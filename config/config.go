package config

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Settings holds the per-environment service URLs and client defaults.
// Values come from the built-in table for the selected environment, with
// EARTHONE_* environment variables taking precedence field by field.
type Settings struct {
	Env           string `env:"EARTHONE_ENV"`
	IamURL        string `env:"EARTHONE_IAM_URL"`
	AppURL        string `env:"EARTHONE_APP_URL"`
	PlatformURL   string `env:"EARTHONE_PLATFORM_URL"`
	CatalogV2URL  string `env:"EARTHONE_CATALOG_V2_URL"`
	ComputeURL    string `env:"EARTHONE_COMPUTE_URL"`
	MetadataURL   string `env:"EARTHONE_METADATA_URL"`
	RasterURL     string `env:"EARTHONE_RASTER_URL"`
	UsageURL      string `env:"EARTHONE_USAGE_URL"`
	UserlimitURL  string `env:"EARTHONE_USERLIMIT_URL"`
	VectorURL     string `env:"EARTHONE_VECTOR_URL"`
	YaasURL       string `env:"EARTHONE_YAAS_URL"`
	LogLevel      string `env:"EARTHONE_LOG_LEVEL"`
	TokenInfoPath string `env:"EARTHONE_TOKEN_INFO_PATH"`
	Testing       bool   `env:"EARTHONE_TESTING"`
}

// DefaultEnv is the environment used when EARTHONE_ENV is not set.
const DefaultEnv = "production"

func platformSettings(env, platform string) Settings {
	base := "https://platform." + platform + ".earthone.earthdaily.com"
	return Settings{
		Env:          env,
		IamURL:       "https://iam." + platform + ".earthone.earthdaily.com",
		AppURL:       "https://app.earthone.earthdaily.com",
		PlatformURL:  base,
		CatalogV2URL: base + "/metadata/v1/catalog/v2",
		ComputeURL:   base + "/compute/v1",
		MetadataURL:  base + "/metadata/v1",
		RasterURL:    base + "/raster/v2",
		UsageURL:     base + "/usage/v1",
		UserlimitURL: base + "/userlimit/v1",
		VectorURL:    base + "/vector/v1",
		YaasURL:      base + "/yaas/v1",
		LogLevel:     "WARNING",
	}
}

func builtinSettings(envName string) (Settings, bool) {
	switch envName {
	case "dev":
		return platformSettings("dev", "dev"), true
	case "testing":
		s := platformSettings("testing", "dev")
		s.Testing = true
		return s, true
	case "staging":
		return platformSettings("staging", "staging"), true
	case "production":
		return platformSettings("production", "production"), true
	case "freemium":
		s := platformSettings("freemium", "freemium")
		// The freemium tenant does not run compute, vector, or yaas.
		s.ComputeURL = ""
		s.VectorURL = ""
		s.YaasURL = ""
		return s, true
	}
	return Settings{}, false
}

var (
	mu       sync.Mutex
	current  *Settings
	loadOnce sync.Once
)

// loadDotEnv pulls a .env file into the process environment once, warning
// when its permissions would expose credentials to other users.
func loadDotEnv() {
	loadOnce.Do(func() {
		_ = godotenv.Load()

		if runtime.GOOS == "windows" {
			return
		}
		info, err := os.Stat(".env")
		if err != nil {
			return
		}
		if mode := info.Mode().Perm(); mode&0o077 != 0 {
			log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
		}
	})
}

// PeekSettings builds the settings for the named environment without
// changing the process-wide selection. An empty name falls back to
// EARTHONE_ENV, then to the default environment.
func PeekSettings(envName string) (*Settings, error) {
	loadDotEnv()

	if envName == "" {
		envName = os.Getenv("EARTHONE_ENV")
	}
	if envName == "" {
		envName = DefaultEnv
	}

	s, ok := builtinSettings(envName)
	if !ok {
		return nil, fmt.Errorf("config: unknown environment %q", envName)
	}

	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("config: parsing environment overrides: %w", err)
	}
	s.Env = envName

	return &s, nil
}

// SelectEnv selects the process-wide environment and returns its settings.
func SelectEnv(envName string) (*Settings, error) {
	s, err := PeekSettings(envName)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	current = s
	mu.Unlock()

	return s, nil
}

// GetSettings returns the process-wide settings, selecting the environment
// from EARTHONE_ENV on first use.
func GetSettings() (*Settings, error) {
	mu.Lock()
	s := current
	mu.Unlock()
	if s != nil {
		return s, nil
	}

	return SelectEnv("")
}
