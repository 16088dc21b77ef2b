/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/wordjack/games/blackjack"
)

func validConfig() *Config {
	return &Config{
		bind:           "127.0.0.1",
		port:           8080,
		rateBurst:      20,
		rateLimit:      10,
		revealDelay:    blackjack.DefaultRevealDelay,
		sessionTimeout: time.Hour,
		targetScore:    blackjack.DefaultTargetScore,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, true},
		{"cert and key", func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, false},
		{"port zero", func(c *Config) { c.port = 0 }, true},
		{"port too high", func(c *Config) { c.port = 65536 }, true},
		{"zero reveal delay", func(c *Config) { c.revealDelay = 0 }, true},
		{"reveal delay too long", func(c *Config) { c.revealDelay = blackjack.MaxRevealDelay + time.Second }, true},
		{"max reveal delay", func(c *Config) { c.revealDelay = blackjack.MaxRevealDelay }, false},
		{"zero target", func(c *Config) { c.targetScore = 0 }, true},
		{"negative rate", func(c *Config) { c.rateLimit = -1 }, true},
		{"zero burst", func(c *Config) { c.rateBurst = 0 }, true},
		{"reaper disabled", func(c *Config) { c.sessionTimeout = 0 }, false},
		{"negative session timeout", func(c *Config) { c.sessionTimeout = -time.Minute }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigScheme(t *testing.T) {
	c := validConfig()
	assert.Equal(t, "http", c.scheme())

	c.tlsCert, c.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", c.scheme())
}

func TestNewCmd_Defaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)

	assert.Equal(t, "wordjack", cmd.Use)
	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, blackjack.DefaultRevealDelay, cfg.revealDelay)
	assert.Equal(t, blackjack.DefaultTargetScore, cfg.targetScore)
	assert.Equal(t, 20, cfg.rateBurst)
	assert.False(t, cfg.allowFiles)
	assert.False(t, cfg.allowAnyURL)
	require.NoError(t, cfg.validate())
}

func TestNewCmd_Environment(t *testing.T) {
	t.Setenv("WORDJACK_TARGET_SCORE", "21")
	t.Setenv("WORDJACK_REVEAL_DELAY", "250ms")
	t.Setenv("WORDJACK_WORDS_URL", "https://example.com/words.csv")
	t.Setenv("WORDJACK_ALLOW_FILES", "true")
	t.Setenv("WORDJACK_ALLOW_ANY_URL", "true")

	cfg := &Config{}
	_ = newCmd(cfg)

	assert.Equal(t, 21, cfg.targetScore)
	assert.Equal(t, 250*time.Millisecond, cfg.revealDelay)
	assert.Equal(t, "https://example.com/words.csv", cfg.wordsURL)
	assert.True(t, cfg.allowFiles)
	assert.True(t, cfg.allowAnyURL)
}

func TestNewCmd_FlagsOverride(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)

	require.NoError(t, cmd.Flags().Parse([]string{"--target-score", "42", "--rate_limit", "2.5"}))

	assert.Equal(t, 42, cfg.targetScore)
	assert.InDelta(t, 2.5, cfg.rateLimit, 0.0001)
}
