package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		r := require.New(t)
		t.Setenv("SL_USERNAME", "sluser")
		t.Setenv("SL_API_KEY", "slkey")

		cfg, err := Load("")
		r.NoError(err)
		r.Equal(8080, cfg.HTTPListenPort)
		r.Equal("dal05", cfg.Volume.DefaultZone)
		r.Equal("jumpgate-", cfg.Volume.NamePrefix)
		r.Equal(3, cfg.Volume.RetryCount)
		r.Equal(2*time.Second, cfg.Volume.WaitTime)
		r.Equal("sluser", cfg.SoftLayer.Username)
	})

	t.Run("missing credentials", func(t *testing.T) {
		r := require.New(t)
		t.Setenv("SL_USERNAME", "")
		t.Setenv("SL_API_KEY", "")

		_, err := Load("")
		r.ErrorContains(err, "credentials missing")
	})

	t.Run("env override", func(t *testing.T) {
		r := require.New(t)
		t.Setenv("SL_USERNAME", "sluser")
		t.Setenv("SL_API_KEY", "slkey")
		t.Setenv("VOLUME_DEFAULT_AVAILABILITY_ZONE", "sjc01")
		t.Setenv("VOLUME_RETRY_COUNT", "5")

		cfg, err := Load("")
		r.NoError(err)
		r.Equal("sjc01", cfg.Volume.DefaultZone)
		r.Equal(5, cfg.Volume.RetryCount)
	})
}
