// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package main

import (
	"errors"

	"github.com/l5-scheduler/l5/internal/config"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd creates the root l5 command with all subcommands registered.
// Running it without a subcommand opens the dashboard.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "l5",
		Short:         "L5 freshness dashboard for carbon and fleet signals",
		Long:          "L5 shows how current the carbon-intensity and Spot Fleet capacity data behind scheduling decisions is.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
		RunE: runDashboard,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("env-file", ".env", "path to a .env file loaded before configuration")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newStatusCmd(),
		newServeCmd(),
		newCredentialsCmd(),
		newSecretCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper loads .env, defaults, L5_ env bindings, flag bindings and the
// optional config file into the global Viper.
// Precedence is flag > env > file > defaults.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return l5err.Errorf(l5err.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType stays unset so viper never matches the ./l5 binary.
		v.SetConfigName(config.FileName)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/l5")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return l5err.Errorf(l5err.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return l5err.Errorf(l5err.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if used := v.ConfigFileUsed(); used != "" {
		config.WarnInsecurePermissions(used)
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return l5err.Errorf(l5err.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}
