// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/fwt/cmd/fwt/commands"
	"github.com/walteh/fwt/cmd/fwt/opts"
	"github.com/walteh/fwt/pkg/config"
	"github.com/walteh/fwt/pkg/foundry"
	"github.com/walteh/fwt/pkg/fpath"
	"github.com/walteh/fwt/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// rootFlags holds the flags shared by every command
type rootFlags struct {
	logLevel    string
	logFile     string
	configFile  string
	mkConfig    bool
	dataDir     string
	version     int
	preset      string
	showPresets bool
	edit        bool
}

var logLevels = map[string]zerolog.Level{
	"quiet": zerolog.Disabled,
	"error": zerolog.ErrorLevel,
	"warn":  zerolog.WarnLevel,
	"info":  zerolog.InfoLevel,
	"debug": zerolog.DebugLevel,
}

// 🌳 newRootCmd builds the command tree around ro, which is filled in
// before any subcommand runs
func newRootCmd(ro *opts.RootOpts, stdout io.Writer) *cobra.Command {
	flags := &rootFlags{}
	var closers []io.Closer

	cmd := &cobra.Command{
		Use:   "fwt",
		Short: "Commands for managing asset files in Foundry worlds and modules",
		Long: `fwt renames, deduplicates, pulls and downloads the asset files of Foundry VTT
worlds and modules, and rewrites every database reference to them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx, closer, err := setupLogging(cmd.Context(), flags, stdout)
			if err != nil {
				return err
			}
			if closer != nil {
				closers = append(closers, closer)
			}
			cmd.SetContext(ctx)
			ro.UserLogger = log.NewUserLogger(ctx)

			zerolog.Ctx(ctx).Debug().Str("command", cmd.CommandPath()).Strs("args", args).Msg("started")

			if _, skip := cmd.Annotations[opts.SkipConfig]; skip || flags.edit {
				return nil
			}
			return loadRootOpts(ctx, cmd, flags, ro)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			for _, c := range closers {
				c.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch {
			case flags.edit:
				return editConfig(ctx, configPath(flags))
			case flags.showPresets:
				names := ro.Config.PresetNames()
				if len(names) == 0 {
					return errors.New("there are no presets defined")
				}
				for _, name := range names {
					p := ro.Config.Presets[name]
					ro.UserLogger.LogPreset(name, p.Description, p.Command)
				}
				return nil
			case flags.mkConfig:
				ro.UserLogger.LogDone("config written to " + ro.Config.Path())
				return nil
			}
			return cmd.Help()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.logLevel, "loglevel", "error", "log level for console output (quiet, error, warn, info, debug)")
	pf.StringVar(&flags.logFile, "logfile", "", "also write debug logs to this file as JSON")
	pf.StringVar(&flags.configFile, "config", "", "config file to load (default "+config.DefaultPath()+")")
	pf.BoolVar(&flags.mkConfig, "mkconfig", false, "create a new default config file")
	pf.StringVar(&flags.dataDir, "dataDir", "", "Foundry data directory")
	pf.IntVar(&flags.version, "foundry-version", foundry.LatestVersion, "Foundry generation of the projects")
	pf.StringVar(&flags.preset, "preset", "", "load a preset; list options are merged with it, others override it")
	pf.BoolVar(&ro.NoTrash, "no-trash", false, "delete replaced files and databases instead of trashing them")
	pf.StringVar(&ro.TrashDir, "trash-dir", "", "trash directory, relative to the project unless absolute")

	cmd.Flags().BoolVar(&flags.showPresets, "showpresets", false, "show the available presets")
	cmd.Flags().BoolVar(&flags.edit, "edit", false, "edit the config file")

	cmd.AddCommand(
		commands.NewDedupCmd(ro),
		commands.NewRenameAllCmd(ro),
		commands.NewRenameCmd(ro),
		commands.NewPullCmd(ro),
		commands.NewDownloadCmd(ro),
		commands.NewInfoCmd(ro),
		commands.NewNedb2YamlCmd(ro),
		commands.NewYaml2NedbCmd(ro),
	)

	return cmd
}

func configPath(flags *rootFlags) string {
	if flags.configFile != "" {
		return flags.configFile
	}
	return config.DefaultPath()
}

// 🎯 loadRootOpts loads the config, the resolver and the preset
func loadRootOpts(ctx context.Context, cmd *cobra.Command, flags *rootFlags, ro *opts.RootOpts) error {
	path := configPath(flags)
	lopts := config.LoadOptions{MkConfig: flags.mkConfig, DataDir: flags.dataDir}

	cfg, err := config.Load(ctx, path, lopts)
	if errors.Is(err, config.ErrConfigNotFound) && flags.configFile == "" {
		cfg, err = config.Empty(lopts)
	}
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		return errors.Errorf("%w: use --mkconfig to create it", err)
	case errors.Is(err, config.ErrNoDataDir):
		return errors.Errorf("%w: set --dataDir or add dataDir to your config file", err)
	case err != nil:
		return errors.Errorf("loading config: %w", err)
	}
	if cfg.Error != "" {
		return errors.Errorf("error loading config %s: %s", path, cfg.Error)
	}
	if err := cfg.Validate(); err != nil {
		return errors.Errorf("invalid config %s: %w", path, err)
	}

	ro.Config = cfg
	ro.Resolver = fpath.NewResolver(cfg.Root(), fpath.WithVersion(flags.version))

	if flags.preset != "" {
		p, err := cfg.Preset(flags.preset, cmd.Name())
		if err != nil {
			return err
		}
		ro.Preset = &p
	}
	return nil
}

// 📝 setupLogging builds the zerolog logger and the file operation reporter
func setupLogging(ctx context.Context, flags *rootFlags, stdout io.Writer) (context.Context, io.Closer, error) {
	level, ok := logLevels[strings.ToLower(flags.logLevel)]
	if !ok {
		return ctx, nil, errors.Errorf("unknown log level %q", flags.logLevel)
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	var (
		w      io.Writer = console
		closer io.Closer
	)
	minLevel := level
	if flags.logFile != "" {
		f, err := os.OpenFile(flags.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return ctx, nil, errors.Errorf("opening log file: %w", err)
		}
		closer = f
		w = zerolog.MultiLevelWriter(
			&zerolog.FilteredLevelWriter{Writer: zerolog.LevelWriterAdapter{Writer: console}, Level: level},
			f,
		)
		minLevel = zerolog.DebugLevel
	}

	logger := zerolog.New(w).Level(minLevel).With().Timestamp().Logger()
	ctx = logger.WithContext(ctx)
	ctx = log.NewContext(ctx, log.New(stdout, logger))
	return ctx, closer, nil
}

// ✏️ editConfig opens the config file in $EDITOR
func editConfig(ctx context.Context, path string) error {
	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}
	zerolog.Ctx(ctx).Info().Str("editor", editor).Str("path", path).Msg("opening config for editing")

	fields := strings.Fields(editor)
	c := exec.CommandContext(ctx, fields[0], append(fields[1:], path)...)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return errors.Errorf("running %s: %w", editor, err)
	}
	return nil
}
