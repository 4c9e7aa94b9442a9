package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:        "production",
		Port:       "8080",
		DBDriver:   "postgres",
		DBSSLMode:  "require",
		DBPassword: "secure-password",
		JWTSecret:  "secure-secret-at-least-32-chars-long",
	}
}

func TestConfig_ValidateProduction(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"valid production config", func(*Config) {}, false},
		{"default jwt secret", func(c *Config) { c.JWTSecret = defaultJWTSecret }, true},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }, true},
		{"weak db password", func(c *Config) { c.DBPassword = "password" }, true},
		{"ssl disabled", func(c *Config) { c.DBSSLMode = "disable" }, true},
		{"sqlite driver", func(c *Config) { c.DBDriver = "sqlite" }, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"unknown password policy", func(c *Config) { c.PasswordPolicy = "paranoid" }, true},
		{"development allows defaults", func(c *Config) {
			c.Env = "development"
			c.JWTSecret = defaultJWTSecret
			c.DBSSLMode = "disable"
			c.DBDriver = "sqlite"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_EnvOverridesAndNormalization(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("COMMENT_MAX_DEPTH", "4")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, 4, c.CommentMaxDepth)
	assert.Equal(t, 60, c.JWTAccessTTLMinutes)
	assert.Equal(t, "relaxed", c.PasswordPolicy)
}

func TestConfig_Origins(t *testing.T) {
	c := &Config{AllowedOrigins: " http://a.test , ,http://b.test"}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.Origins())
}
