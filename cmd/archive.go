package cmd

import (
	"github.com/sloonz/xbprep/container"
	"github.com/sloonz/xbprep/lib"

	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	cmdArchiveCreateKeyFile          string
	cmdArchiveCreateKey              string
	cmdArchiveCreateCompressionLevel int
	cmdArchiveCreate                 = &cobra.Command{
		Use:   "create <prepared-dir> <destination>",
		Short: "Pack a prepared directory and send it to a destination",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			dir := filepath.Clean(args[0])
			fs := afero.NewOsFs()

			if incomplete, err := xbprep.Exists(fs, dir+xbprep.IncompleteSuffix); err != nil {
				logrus.Fatal(err)
			} else if incomplete {
				logrus.Fatalf("%s has not been fully prepared (%s exists)", dir, dir+xbprep.IncompleteSuffix)
			}

			dstOpts := newOptionsBuilder(xbprep.ParseOptions(args[1], presets)).
				WithDestination().
				WithRecipients(cmdArchiveCreateKeyFile, cmdArchiveCreateKey).
				FatalOnError()

			pr, pw := io.Pipe()
			go func() {
				pw.CloseWithError(container.Pack(pw, fs, dir, dstOpts.Recipients, cmdArchiveCreateCompressionLevel))
			}()

			name := filepath.Base(dir) + container.Ext
			err := dstOpts.Destination.SendArchive(name, pr)
			pr.CloseWithError(err)
			if err != nil {
				logrus.Fatal(err)
			}
		},
	}
)

var cmdArchiveList = &cobra.Command{
	Use:   "list <destination>",
	Short: "List archives on a destination",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dstOpts := newOptionsBuilder(xbprep.ParseOptions(args[0], presets)).
			WithDestination().
			FatalOnError()

		archives, err := dstOpts.Destination.ListArchives()
		if err != nil {
			logrus.Fatal(err)
		}

		sort.Strings(archives)
		for _, a := range archives {
			fmt.Println(a)
		}
	},
}

var (
	cmdArchiveExtractKeyFile string
	cmdArchiveExtractKey     string
	cmdArchiveExtract        = &cobra.Command{
		Use:   "extract <archive-file> [parent-dir]",
		Short: "Extract an archive into parent-dir (default: current directory)",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			parentDir := "."
			if len(args) > 1 {
				parentDir = args[1]
			}

			opts := newOptionsBuilder(xbprep.NewOptions(), nil).
				WithIdentities(cmdArchiveExtractKeyFile, cmdArchiveExtractKey).
				FatalOnError()

			f, err := os.Open(args[0])
			if err != nil {
				logrus.Fatal(err)
			}
			defer f.Close()

			dir, err := container.Unpack(f, afero.NewOsFs(), parentDir, opts.Identities)
			if err != nil {
				logrus.Fatal(err)
			}

			logrus.Printf("extracted %s", dir)
		},
	}
)

var cmdArchive = &cobra.Command{
	Use:   "archive",
	Short: "Pack prepared backups into compressed, optionally encrypted, archives",
}

func init() {
	cmdArchiveCreate.Flags().StringVarP(&cmdArchiveCreateKeyFile, "key-file", "k", "", "recipients file for encryption")
	cmdArchiveCreate.Flags().StringVarP(&cmdArchiveCreateKey, "key", "K", "", "recipient for encryption")
	cmdArchiveCreate.Flags().IntVarP(&cmdArchiveCreateCompressionLevel, "compression-level", "z", 3, "compression level")
	cmdArchiveExtract.Flags().StringVarP(&cmdArchiveExtractKeyFile, "key-file", "k", "", "identity file for decryption")
	cmdArchiveExtract.Flags().StringVarP(&cmdArchiveExtractKey, "key", "K", "", "identity for decryption")
	cmdArchive.AddCommand(cmdArchiveCreate, cmdArchiveList, cmdArchiveExtract)
}
