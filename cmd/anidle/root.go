package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ceapa-git/anidle/app"
	"github.com/Ceapa-git/anidle/config"
	"github.com/Ceapa-git/anidle/logging"
)

type rootOptions struct {
	configFile string
	logToFile  bool
}

func newRootCommand() *cobra.Command {
	var opts rootOptions
	v := config.New()

	cmd := &cobra.Command{
		Use:   "anidle",
		Short: "Run the anidle backend server",
		Long: `anidle serves the account, token and daily endpoints over HTTP/1.1.

Settings come from flags, ANIDLE_* environment variables (MONGO_URI,
MONGO_DB and JWT_ISSUER are also honored), .env.local and .env, and an
optional anidle.yaml.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config.LoadEnvFiles()

			cfg, err := config.Load(v, opts.configFile)
			if err != nil {
				return err
			}
			if opts.logToFile && cfg.Log.File == "" {
				cfg.Log.File = config.DefaultLogFile
			}
			if cfg.Debug {
				cfg.Log.Level = "debug"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logCfg := logging.DefaultConfig()
			logCfg.Level = cfg.Log.Level
			logCfg.Format = cfg.Log.Format
			if cfg.Log.File != "" {
				logCfg.Files = []string{cfg.Log.File}
			}
			log, closer, err := logging.New(logCfg)
			if err != nil {
				return fmt.Errorf("open log: %w", err)
			}
			defer closer.Close()

			if cfg.ConfigFile != "" {
				log.Info().Str("file", cfg.ConfigFile).Msg("config loaded")
			}

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, log)
			if err != nil {
				log.Error().Err(err).Msg("startup failed")
				return err
			}
			return a.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.Int("port", 8080, "port to listen on (1000-9999)")
	flags.BoolP("debug", "d", false, "debug logging and route listing")
	flags.BoolVarP(&opts.logToFile, "log", "l", false, "also log to "+config.DefaultLogFile)
	flags.StringVar(&opts.configFile, "config", "", "config file (default ./anidle.yaml)")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	flags.String("store", "", "store driver: mongo or memory")

	// flag names are literals above, so binding cannot fail
	_ = v.BindPFlag("port", flags.Lookup("port"))
	_ = v.BindPFlag("debug", flags.Lookup("debug"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("store.driver", flags.Lookup("store"))

	return cmd
}
