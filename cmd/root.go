package cmd

import (
	"github.com/sloonz/xbprep/lib"

	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	presetsDir string
	logLevel   string
	configFile string
	presets    map[string][]xbprep.KeyValuePair

	tag       = "git"
	commit    = "unknown"
	buildDate = "unknown"

	rootCmd = &cobra.Command{
		Use:   "xbprep",
		Short: "Prepare xtrabackup full and incremental backups for restoration",
	}
	cmdVersion = &cobra.Command{
		Use: "version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Version: %s\n", tag)
			fmt.Printf("Commit: %s\n", commit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	}
)

func init() {
	cobra.OnInitialize(func() {
		var err error

		if logLevel != "" {
			level, err := logrus.ParseLevel(logLevel)
			if err == nil {
				logrus.SetLevel(level)
			} else {
				logrus.Warnf("Cannot set log level: %v", err)
			}
		}

		viper.SetEnvPrefix("xbprep")
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		viper.AutomaticEnv()
		if configFile != "" {
			viper.SetConfigFile(configFile)
			if err = viper.ReadInConfig(); err != nil {
				logrus.Fatal(err)
			}
		}

		if presetsDir == "" {
			usr, err := user.Current()
			if err != nil {
				logrus.Fatal(err)
			}
			presetsDir = xbprep.DefaultPresetsDir(usr.Uid, usr.HomeDir)
		}

		presets, err = xbprep.ReadPresets(presetsDir)
		if err != nil {
			logrus.Fatal(err)
		}
	})

	rootCmd.PersistentFlags().StringVarP(&presetsDir, "presets-dir", "p", "", "path to presets directory")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", os.Getenv("LOG_LEVEL"), "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file providing flag values (yaml, toml or json)")
	rootCmd.AddCommand(cmdPrepare, cmdList, cmdArchive, cmdKey, cmdPreset, cmdVersion)
}

// Make the flags of cmd readable through viper, so that they can also be given as XBPREP_* environment
// variables or in the configuration file. Bound when the command runs, since commands share flag names.
func bindFlags(cmd *cobra.Command, args []string) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(f.Name, f); err != nil {
			logrus.Fatal(err)
		}
	})
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		logrus.Fatal(err)
	}
}
