package config

import (
	"os"
	"strings"
	"testing"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"EARTHONE_ENV", "EARTHONE_IAM_URL", "EARTHONE_APP_URL",
		"EARTHONE_PLATFORM_URL", "EARTHONE_CATALOG_V2_URL",
		"EARTHONE_COMPUTE_URL", "EARTHONE_METADATA_URL", "EARTHONE_RASTER_URL",
		"EARTHONE_USAGE_URL", "EARTHONE_USERLIMIT_URL", "EARTHONE_VECTOR_URL",
		"EARTHONE_YAAS_URL", "EARTHONE_LOG_LEVEL", "EARTHONE_TOKEN_INFO_PATH",
		"EARTHONE_TESTING",
	} {
		if value, ok := os.LookupEnv(key); ok {
			t.Setenv(key, value) // register restore
			os.Unsetenv(key)
		}
	}
}

func TestPeekSettings(t *testing.T) {
	t.Run("production table", func(t *testing.T) {
		clearConfigEnv(t)
		s, err := PeekSettings("production")
		if err != nil {
			t.Fatalf("PeekSettings() error = %v", err)
		}
		if s.IamURL != "https://iam.production.earthone.earthdaily.com" {
			t.Errorf("IamURL = %q", s.IamURL)
		}
		if s.CatalogV2URL != "https://platform.production.earthone.earthdaily.com/metadata/v1/catalog/v2" {
			t.Errorf("CatalogV2URL = %q", s.CatalogV2URL)
		}
		if s.LogLevel != "WARNING" {
			t.Errorf("LogLevel = %q", s.LogLevel)
		}
		if s.Testing {
			t.Error("production must not set Testing")
		}
	})

	t.Run("per environment platforms", func(t *testing.T) {
		clearConfigEnv(t)
		for envName, platform := range map[string]string{
			"dev":        "dev",
			"testing":    "dev",
			"staging":    "staging",
			"production": "production",
			"freemium":   "freemium",
		} {
			s, err := PeekSettings(envName)
			if err != nil {
				t.Fatalf("PeekSettings(%q) error = %v", envName, err)
			}
			if s.Env != envName {
				t.Errorf("Env = %q, want %q", s.Env, envName)
			}
			if !strings.Contains(s.IamURL, "://iam."+platform+".") {
				t.Errorf("%s: IamURL = %q, want platform %q", envName, s.IamURL, platform)
			}
		}
	})

	t.Run("testing environment flags itself", func(t *testing.T) {
		clearConfigEnv(t)
		s, err := PeekSettings("testing")
		if err != nil {
			t.Fatalf("PeekSettings() error = %v", err)
		}
		if !s.Testing {
			t.Error("testing environment must set Testing")
		}
	})

	t.Run("freemium omits unavailable services", func(t *testing.T) {
		clearConfigEnv(t)
		s, err := PeekSettings("freemium")
		if err != nil {
			t.Fatalf("PeekSettings() error = %v", err)
		}
		if s.ComputeURL != "" || s.VectorURL != "" || s.YaasURL != "" {
			t.Errorf("freemium should clear compute, vector, and yaas: %+v", s)
		}
		if s.MetadataURL == "" {
			t.Error("freemium should keep metadata")
		}
	})

	t.Run("unknown environment", func(t *testing.T) {
		clearConfigEnv(t)
		if _, err := PeekSettings("nosuch"); err == nil {
			t.Fatal("PeekSettings(nosuch) should fail")
		}
	})

	t.Run("environment variables override the table", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("EARTHONE_IAM_URL", "https://iam.example.com")
		t.Setenv("EARTHONE_LOG_LEVEL", "DEBUG")

		s, err := PeekSettings("production")
		if err != nil {
			t.Fatalf("PeekSettings() error = %v", err)
		}
		if s.IamURL != "https://iam.example.com" {
			t.Errorf("IamURL = %q, want the override", s.IamURL)
		}
		if s.LogLevel != "DEBUG" {
			t.Errorf("LogLevel = %q, want DEBUG", s.LogLevel)
		}
		if s.RasterURL != "https://platform.production.earthone.earthdaily.com/raster/v2" {
			t.Errorf("RasterURL = %q, want the table value", s.RasterURL)
		}
	})

	t.Run("empty name falls back to EARTHONE_ENV", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("EARTHONE_ENV", "staging")

		s, err := PeekSettings("")
		if err != nil {
			t.Fatalf("PeekSettings() error = %v", err)
		}
		if s.Env != "staging" {
			t.Errorf("Env = %q, want staging", s.Env)
		}
	})

	t.Run("peek does not change the selection", func(t *testing.T) {
		clearConfigEnv(t)
		if _, err := SelectEnv("production"); err != nil {
			t.Fatalf("SelectEnv() error = %v", err)
		}
		if _, err := PeekSettings("staging"); err != nil {
			t.Fatalf("PeekSettings() error = %v", err)
		}

		s, err := GetSettings()
		if err != nil {
			t.Fatalf("GetSettings() error = %v", err)
		}
		if s.Env != "production" {
			t.Errorf("Env = %q, peek must not change the selection", s.Env)
		}
	})
}

func TestSelectEnv(t *testing.T) {
	clearConfigEnv(t)

	s, err := SelectEnv("staging")
	if err != nil {
		t.Fatalf("SelectEnv() error = %v", err)
	}
	if s.Env != "staging" {
		t.Errorf("Env = %q, want staging", s.Env)
	}

	got, err := GetSettings()
	if err != nil {
		t.Fatalf("GetSettings() error = %v", err)
	}
	if got != s {
		t.Error("GetSettings() should return the selected settings")
	}

	if _, err := SelectEnv("nosuch"); err == nil {
		t.Fatal("SelectEnv(nosuch) should fail")
	}
	got, err = GetSettings()
	if err != nil {
		t.Fatalf("GetSettings() error = %v", err)
	}
	if got.Env != "staging" {
		t.Error("a failed SelectEnv must not change the selection")
	}
}

func TestGetSettingsDefaults(t *testing.T) {
	clearConfigEnv(t)

	mu.Lock()
	saved := current
	current = nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		current = saved
		mu.Unlock()
	})

	s, err := GetSettings()
	if err != nil {
		t.Fatalf("GetSettings() error = %v", err)
	}
	if s.Env != DefaultEnv {
		t.Errorf("Env = %q, want %q", s.Env, DefaultEnv)
	}
}
