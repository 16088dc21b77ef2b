package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/wordjack/games/blackjack"
)

type Config struct {
	allowAnyURL    bool
	allowFiles     bool
	bind           string
	port           int
	prefix         string
	profile        bool
	rateBurst      int
	rateLimit      float64
	revealDelay    time.Duration
	sessionTimeout time.Duration
	targetScore    int
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
	wordsURL       string

	logger zerolog.Logger
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.revealDelay <= 0 || c.revealDelay > blackjack.MaxRevealDelay {
		return fmt.Errorf("invalid reveal delay (must be above 0 and at most %s): %s", blackjack.MaxRevealDelay, c.revealDelay)
	}
	if c.targetScore <= 0 {
		return fmt.Errorf("invalid target score (must be positive): %d", c.targetScore)
	}
	if c.rateLimit <= 0 {
		return fmt.Errorf("invalid rate limit (must be positive): %g", c.rateLimit)
	}
	if c.rateBurst < 1 {
		return fmt.Errorf("invalid rate burst (must be at least 1): %d", c.rateBurst)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("WORDJACK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "wordjack",
		Short:         "A word-list blackjack party game for up to four teams.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			cfg.logger = newLogger(cfg)
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.BoolVar(&cfg.allowAnyURL, "allow-any-url", false, "allow word lists from any http(s) url, not just Google Sheets and --words-url (env: WORDJACK_ALLOW_ANY_URL)")
	fs.BoolVar(&cfg.allowFiles, "allow-files", false, "allow word lists to be loaded from local csv files (env: WORDJACK_ALLOW_FILES)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: WORDJACK_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: WORDJACK_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: WORDJACK_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: WORDJACK_PROFILE)")
	fs.IntVar(&cfg.rateBurst, "rate-burst", 20, "commands a single connection may send in a burst (env: WORDJACK_RATE_BURST)")
	fs.Float64Var(&cfg.rateLimit, "rate-limit", 10, "commands per second allowed per connection (env: WORDJACK_RATE_LIMIT)")
	fs.DurationVar(&cfg.revealDelay, "reveal-delay", blackjack.DefaultRevealDelay, "time a confirmed word is shown before the turn passes (env: WORDJACK_REVEAL_DELAY)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are ended, 0 to disable (env: WORDJACK_SESSION_TIMEOUT)")
	fs.IntVar(&cfg.targetScore, "target-score", blackjack.DefaultTargetScore, "default score teams must not exceed (env: WORDJACK_TARGET_SCORE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: WORDJACK_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: WORDJACK_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: WORDJACK_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: WORDJACK_VERSION)")
	fs.StringVar(&cfg.wordsURL, "words-url", "", "default Google Sheets or csv url for the word list (env: WORDJACK_WORDS_URL)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("wordjack v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
