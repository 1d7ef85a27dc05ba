package cmd

import (
	"github.com/sloonz/xbprep/lib"

	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cmdPreset = &cobra.Command{
	Use:   "preset",
	Short: "Manage presets",
}

var presetSetClear bool
var cmdPresetSet = &cobra.Command{
	Use:   "set <preset-name> [option=value...]",
	Short: "Create or modify preset",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		p, err := presetPath(args[0])
		if err != nil {
			logrus.Fatal(err)
		}

		var kvs []xbprep.KeyValuePair
		if !presetSetClear {
			data, err := os.ReadFile(p)
			if err != nil && !os.IsNotExist(err) {
				logrus.Fatal(err)
			} else if err == nil {
				err = json.Unmarshal(data, &kvs)
				if err != nil {
					logrus.Fatal(err)
				}
			}
		}

		for _, opts := range args[1:] {
			kvs = append(kvs, xbprep.SplitOptions(opts)...)
		}

		data, err := json.Marshal(kvs)
		if err != nil {
			logrus.Fatal(err)
		}

		err = os.MkdirAll(presetsDir, 0777)
		if err != nil {
			logrus.Fatal(err)
		}

		err = os.WriteFile(p, data, 0666)
		if err != nil {
			logrus.Fatal(err)
		}
	},
}

// Presets names are file names
func presetPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid preset name: %q", name)
	}
	return filepath.Join(presetsDir, name+".json"), nil
}

var cmdPresetRemove = &cobra.Command{
	Use:   "remove <preset-name...>",
	Short: "Remove presets",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range args {
			p, err := presetPath(name)
			if err == nil {
				err = os.Remove(p)
			}
			if err != nil && !os.IsNotExist(err) {
				logrus.Warn(err)
			}
		}
	},
}

var presetListVerbose bool
var cmdPresetList = &cobra.Command{
	Use:   "list",
	Short: "List presets",
	Run: func(cmd *cobra.Command, args []string) {
		names := make([]string, 0, len(presets))
		for name := range presets {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if presetListVerbose {
				fmt.Printf("%v %v\n", name, presets[name])
			} else {
				fmt.Printf("%v\n", name)
			}
		}
	},
}

var cmdPresetEval = &cobra.Command{
	Use:   "eval <option-line>",
	Short: "Show the evaluated (after presets substitutions and template evaluation) option line",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		options, err := xbprep.ParseOptions(args[0], presets)
		if err != nil {
			logrus.Fatal(err)
		}

		for k, v := range options.String {
			fmt.Printf("%s: %s\n", k, v)
		}
		for k, v := range options.StrSlice {
			fmt.Printf("@%s: %v\n", k, v)
		}
	},
}

func init() {
	cmdPresetList.Flags().BoolVarP(&presetListVerbose, "verbose", "v", false, "also print preset content")
	cmdPresetSet.Flags().BoolVarP(&presetSetClear, "clear", "c", false, "remove existing entries")
	cmdPreset.AddCommand(cmdPresetSet, cmdPresetRemove, cmdPresetList, cmdPresetEval)
}
