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

	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, "https://api.trongrid.io/jsonrpc", cfg.Tron.RPCURL)
	assert.Equal(t, 30*time.Second, cfg.Tron.CallTimeout)
	assert.Equal(t, time.Minute, cfg.Orphans.SweepInterval)
	assert.Equal(t, int64(512*1024), cfg.Storage.InlineThumbnailMax)
	assert.Equal(t, 50, cfg.Notices.RecentLimit)
	assert.False(t, cfg.Reconcile.AssumeOddEvenPair)
}

func TestFromViperNetworkOverride(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("TRON_NETWORK", "Nile")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	v.Set("ORPHAN_SWEEP_INTERVAL", "not-a-duration")

	cfg := fromViper(v)

	assert.Equal(t, "nile", cfg.Tron.Network)
	assert.Equal(t, "https://nile.trongrid.io/jsonrpc", cfg.Tron.RPCURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, time.Minute, cfg.Orphans.SweepInterval)
}

func TestExplicitRPCURLWins(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("TRON_RPC_URL", "http://localhost:8545")

	assert.Equal(t, "http://localhost:8545", fromViper(v).Tron.RPCURL)
}
