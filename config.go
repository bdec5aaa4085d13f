/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	adminPassword string
	bind          string
	cacheTTL      time.Duration
	credentials   string
	dataDir       string
	debug         bool
	photoDir      string
	port          int
	prefix        string
	profile       bool
	spreadsheet   string
	spreadsheetID string
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.cacheTTL < 0 {
		return fmt.Errorf("invalid cache ttl (must not be negative): %s", c.cacheTTL)
	}
	if c.credentials != "" && c.spreadsheet == "" && c.spreadsheetID == "" {
		return errors.New("--credentials requires --spreadsheet or --spreadsheet-id")
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
	v.SetEnvPrefix("SECRETBINGO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "secretbingo",
		Short:         "Guess who is behind each secret identity, bingo style.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.adminPassword, "admin-password", "", "password required to reveal identities; reveals are disabled when empty (env: SECRETBINGO_ADMIN_PASSWORD)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SECRETBINGO_BIND)")
	fs.DurationVar(&cfg.cacheTTL, "cache-ttl", 30*time.Second, "how long loaded collections are reused, 0 to disable (env: SECRETBINGO_CACHE_TTL)")
	fs.StringVar(&cfg.credentials, "credentials", "", "path to a google service account key; local files are used when empty (env: SECRETBINGO_CREDENTIALS)")
	fs.StringVar(&cfg.dataDir, "data-dir", ".", "directory holding the local json copy of each collection (env: SECRETBINGO_DATA_DIR)")
	fs.BoolVar(&cfg.debug, "debug", false, "expose raw sheet previews under /debug (env: SECRETBINGO_DEBUG)")
	fs.StringVar(&cfg.photoDir, "photo-dir", "", "directory of identity photos referenced by file name (env: SECRETBINGO_PHOTO_DIR)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SECRETBINGO_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SECRETBINGO_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: SECRETBINGO_PROFILE)")
	fs.StringVar(&cfg.spreadsheet, "spreadsheet", "secret_identity_bingo", "name of the spreadsheet shared with the service account (env: SECRETBINGO_SPREADSHEET)")
	fs.StringVar(&cfg.spreadsheetID, "spreadsheet-id", "", "id of the spreadsheet, skips the lookup by name (env: SECRETBINGO_SPREADSHEET_ID)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SECRETBINGO_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SECRETBINGO_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SECRETBINGO_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SECRETBINGO_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("secretbingo v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
