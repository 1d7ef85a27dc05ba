package cmd

import (
	"github.com/sloonz/xbprep/lib"

	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cmdList = &cobra.Command{
	Use:    "list",
	Short:  "List backups, and the chain that prepare would apply",
	Args:   cobra.NoArgs,
	PreRun: bindFlags,
	Run: func(cmd *cobra.Command, args []string) {
		baseDir := viper.GetString("backup-base-dir")
		if baseDir == "" {
			logrus.Fatal(&xbprep.InvalidArgumentError{Name: "backup_base_dir"})
		}

		opts := newOptionsBuilder(xbprep.NewOptions(), nil).
			WithCatalog().
			FatalOnError()

		for _, kind := range []xbprep.Kind{xbprep.KindFull, xbprep.KindIncremental} {
			backups, err := opts.Catalog.ListBackups(baseDir, kind)
			if err != nil {
				logrus.Fatal(err)
			}

			for _, b := range backups {
				fmt.Printf("%s (%s, %d -> %d)\n", b.Path, b.Kind, b.FromLSN, b.ToLSN)
			}
		}

		preparer := xbprep.NewPreparer(opts.Catalog, nil, afero.NewOsFs())
		target, err := preparer.SelectTarget(baseDir, viper.GetString("backup-dir"))
		if err != nil {
			logrus.Fatal(err)
		}

		chain, err := preparer.Chain(baseDir, target)
		if err != nil {
			logrus.Fatal(err)
		}

		fmt.Printf("\nrecovery point: %s\n", target.Name())
		for i, b := range chain {
			mode := "redo-only"
			if i == len(chain)-1 {
				mode = "final"
			}
			fmt.Printf("  %d. %s (%s, %d -> %d, %s apply)\n", i, b.Name(), b.Kind, b.FromLSN, b.ToLSN, mode)
		}
	},
}

func init() {
	cmdList.Flags().StringP("backup-base-dir", "b", "", "directory containing the full and incremental backups (required)")
	cmdList.Flags().StringP("backup-dir", "d", "", "show the chain of this backup instead of the latest one")
	addCatalogFlags(cmdList)
}
