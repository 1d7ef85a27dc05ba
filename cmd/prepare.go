package cmd

import (
	"github.com/sloonz/xbprep/lib"

	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cmdPrepare = &cobra.Command{
	Use:   "prepare",
	Short: "Prepare the latest backup (or a given one) for restoration",
	Long: `Copy the full backup of the chain leading to the selected recovery point into the
output directory, then apply the redo logs of the chain onto the copy.

The tool used to apply redo logs is configured by an option line, for example
"type=xtrabackup,command=sudo xtrabackup,use-memory=1G". Supported types are
innobackupex (default), xtrabackup, mariabackup and command.`,
	Args:   cobra.NoArgs,
	PreRun: bindFlags,
	Run: func(cmd *cobra.Command, args []string) {
		opts := newOptionsBuilder(xbprep.ParseOptions(viper.GetString("tool"), presets)).
			WithTool().
			WithCatalog().
			FatalOnError()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		preparer := xbprep.NewPreparer(opts.Catalog, opts.Tool, afero.NewOsFs())
		res, err := preparer.Prepare(ctx, xbprep.PrepareOptions{
			OutputDir:     viper.GetString("output-dir"),
			BackupBaseDir: viper.GetString("backup-base-dir"),
			BackupDir:     viper.GetString("backup-dir"),
			Username:      viper.GetString("user"),
			Password:      viper.GetString("password"),
		})
		if err != nil {
			logrus.Fatal(err)
		}

		fmt.Println(res.RestoreHint())
	},
}

func init() {
	cmdPrepare.Flags().StringP("output-dir", "o", "", "directory receiving the prepared backup (required)")
	cmdPrepare.Flags().StringP("backup-base-dir", "b", "", "directory containing the full and incremental backups (required)")
	cmdPrepare.Flags().StringP("backup-dir", "d", "", "prepare this backup instead of the latest one")
	cmdPrepare.Flags().StringP("user", "u", "", "database user given to the apply tool")
	cmdPrepare.Flags().String("password", "", "database password given to the apply tool (prefer XBPREP_PASSWORD)")
	cmdPrepare.Flags().StringP("tool", "t", "", "apply tool options")
	addCatalogFlags(cmdPrepare)
}

func addCatalogFlags(cmd *cobra.Command) {
	cmd.Flags().String("full-subdir", "full", "subdirectory of the base directory containing full backups")
	cmd.Flags().String("incremental-subdir", "incremental", "subdirectory of the base directory containing incremental backups")
}
