// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	luxlog "github.com/luxfi/log"

	"github.com/luxfi/dexstack/cmd/deploycmd"
	"github.com/luxfi/dexstack/cmd/networkcmd"
	"github.com/luxfi/dexstack/cmd/pricecmd"
	"github.com/luxfi/dexstack/cmd/registrycmd"
	"github.com/luxfi/dexstack/pkg/application"
	"github.com/luxfi/dexstack/pkg/config"
	"github.com/luxfi/dexstack/pkg/constants"
	"github.com/luxfi/dexstack/pkg/prompts"
	"github.com/luxfi/dexstack/pkg/ux"
)

var (
	app *application.Dex

	logFactory luxlog.Factory

	logLevel       string
	Version        = "0.3.0"
	cfgFile        string
	nonInteractive bool
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "dexstack",
		Long: `dexstack deploys the DEX contract suite to a network and keeps a registry
of what it deployed, so that re-running a deployment only sends what is missing.

COMMANDS:

  deploy      Run the deployment plan against a network
  registry    List, export or clear recorded deployments
  price       Convert prices to and from sqrtPriceX96
  network     Show the known network profiles

QUICK START:

  # Deploy everything, mock tokens included, to a local hardhat node
  dexstack deploy --network hardhat

  # Write deployments.json and ui-config.json for the frontend
  dexstack registry export --network hardhat --dir ./ui/src

  # Check the initial pool price encoding
  dexstack price encode 5000 --tick-spacing 60`,
		PersistentPreRunE: createApp,
		Version:           Version,
		SilenceUsage:      true,
	}

	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dexstack/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "WARN", "console log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false,
		"Disable prompts; fail if required values are missing (also enabled when stdin is not a TTY or CI=1)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Show verbose output (info level logs)")
	rootCmd.PersistentFlags().Bool("debug", false, "Show debug output (debug level logs)")
	rootCmd.PersistentFlags().Bool("quiet", false, "Show only errors (quiet mode)")

	rootCmd.AddCommand(deploycmd.NewCmd(app))
	rootCmd.AddCommand(registrycmd.NewCmd(app))
	rootCmd.AddCommand(pricecmd.NewCmd(app))
	rootCmd.AddCommand(networkcmd.NewCmd(app))

	return rootCmd
}

func createApp(cmd *cobra.Command, _ []string) error {
	baseDir, err := setupEnv()
	if err != nil {
		return err
	}
	log, err := setupLogging(baseDir, displayLevel(cmd))
	if err != nil {
		return err
	}

	if err := initConfig(cmd, log); err != nil {
		return err
	}
	if nonInteractive {
		_ = os.Setenv(prompts.EnvNonInteractive, "1")
	}
	prompter := prompts.NewPrompterForMode(nonInteractive)
	app.Setup(baseDir, log, config.New(viper.GetViper()), prompter, afero.NewOsFs())
	return app.EnsureDirs()
}

func setupEnv() (string, error) {
	if dir := os.Getenv(constants.EnvPrefix + "_HOME"); dir != "" {
		return dir, os.MkdirAll(dir, 0o750)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// no logger here yet
		fmt.Printf("unable to get home dir %s\n", err)
		return "", err
	}
	baseDir := filepath.Join(home, constants.BaseDirName)
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		fmt.Printf("failed creating the basedir %s: %s\n", baseDir, err)
		return "", err
	}
	return baseDir, nil
}

// displayLevel picks the console level from the verbosity flags. The file
// log records info and above, or down to the display level when it is lower.
func displayLevel(cmd *cobra.Command) luxlog.Level {
	switch {
	case cmd.Flags().Changed("debug"):
		return luxlog.DebugLevel
	case cmd.Flags().Changed("verbose"):
		return luxlog.InfoLevel
	case cmd.Flags().Changed("quiet"):
		return luxlog.ErrorLevel
	case logLevel != "":
		if level, err := luxlog.ToLevel(logLevel); err == nil {
			return level
		}
	}
	return luxlog.WarnLevel
}

func setupLogging(baseDir string, display luxlog.Level) (luxlog.Logger, error) {
	config := luxlog.Config{}
	config.LogLevel = luxlog.InfoLevel
	if display < config.LogLevel {
		config.LogLevel = display
	}
	config.DisplayLevel = display

	config.Directory = filepath.Join(baseDir, constants.LogDir)
	if err := os.MkdirAll(config.Directory, constants.DefaultPerms755); err != nil {
		return nil, fmt.Errorf("failed creating log directory: %w", err)
	}

	// some logging config params
	config.LogFormat = luxlog.JSON
	config.MaxSize = constants.MaxLogFileSize
	config.MaxFiles = constants.MaxNumOfLogFiles
	config.MaxAge = constants.RetainOldFiles
	// the factory console writer has no level of its own, ConsoleLogger does
	config.DisableWriterDisplaying = true

	// caller tracking skips the ux wrappers
	luxlog.RegisterInternalPackages("github.com/luxfi/dexstack/pkg/ux")

	factory := luxlog.NewFactoryWithConfig(config)
	file, err := factory.Make(constants.LogName)
	if err != nil {
		factory.Close()
		return nil, fmt.Errorf("failed setting up logging, exiting: %w", err)
	}
	logFactory = factory
	log := ux.Split(file, ux.ConsoleLogger(display))

	// user output goes to stdout, logs to stderr and the log file
	ux.NewUserLog(log, os.Stdout)
	return log, nil
}

// initConfig reads in config file and ENV variables if set.
// Priority: flags > env vars > config file > defaults
func initConfig(cmd *cobra.Command, log luxlog.Logger) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		viper.AddConfigPath(filepath.Join(home, constants.BaseDirName))
		viper.SetConfigType(constants.DefaultConfigFileType)
		viper.SetConfigName(constants.DefaultConfigFileName)
	}

	viper.SetEnvPrefix(constants.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	// deployer secrets keep the names hardhat projects already use
	_ = viper.BindEnv(constants.ConfigPrivateKeyKey, constants.EnvPrivateKey)
	_ = viper.BindEnv(constants.ConfigMnemonicKey, constants.EnvMnemonic)
	_ = viper.BindEnv(constants.ConfigSepoliaRPCKey, constants.EnvSepoliaRPC)
	viper.AutomaticEnv()

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if err := viper.ReadInConfig(); err == nil {
		log.Debug("using config file", luxlog.String("config-file", viper.ConfigFileUsed()))
	} else if cfgFile != "" {
		return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
	}
	// No config file is normal - most users don't have one, so we silently continue
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	app = application.New()
	rootCmd := NewRootCmd()
	err := rootCmd.Execute()
	if logFactory != nil {
		logFactory.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nERROR: %s\n", err)
		os.Exit(1)
	}
}
