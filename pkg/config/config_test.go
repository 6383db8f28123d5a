package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "exam_results", cfg.Database.Name)
	assert.True(t, cfg.Analytics.CacheEnabled)
	assert.Equal(t, 10*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, 4, cfg.Processing.Workers)
	assert.Equal(t, 1, cfg.Processing.QueueWorkers)
	assert.False(t, cfg.Processing.IncludeAbsent)
	assert.Equal(t, time.Hour, cfg.Exports.SignedURLTTL)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("PROCESSING_WORKERS", 0)
	v.Set("ANALYTICS_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://dash.example.org, ,https://admin.example.org")
	v.Set("PROCESSING_INCLUDE_ABSENT", true)

	cfg := fromViper(v)

	assert.Equal(t, 4, cfg.Processing.Workers)
	assert.Equal(t, 10*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, []string{"https://dash.example.org", "https://admin.example.org"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Processing.IncludeAbsent)
}
