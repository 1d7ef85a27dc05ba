package cmd

import (
	"github.com/sloonz/xbprep/catalog"
	"github.com/sloonz/xbprep/destinations"
	"github.com/sloonz/xbprep/lib"
	"github.com/sloonz/xbprep/tools"

	"filippo.io/age"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

type optionsBuilder struct {
	Options     *xbprep.Options
	Tool        xbprep.Applier
	Catalog     *catalog.FSCatalog
	Destination xbprep.Destination
	Recipients  []age.Recipient
	Identities  []age.Identity
	Error       error
}

func newOptionsBuilder(options *xbprep.Options, err error) *optionsBuilder {
	return &optionsBuilder{Options: options, Error: err}
}

func (o *optionsBuilder) WithTool() *optionsBuilder {
	if o.Error == nil {
		o.Tool, o.Error = tools.New(o.Options)
	}
	return o
}

// Filesystem catalog, subdirectories taken from the --full-subdir and --incremental-subdir flags
func (o *optionsBuilder) WithCatalog() *optionsBuilder {
	if o.Error == nil {
		o.Catalog = catalog.NewFSCatalog(afero.NewOsFs())
		if s := viper.GetString("full-subdir"); s != "" {
			o.Catalog.FullSubdir = s
		}
		if s := viper.GetString("incremental-subdir"); s != "" {
			o.Catalog.IncrementalSubdir = s
		}
	}
	return o
}

func (o *optionsBuilder) WithDestination() *optionsBuilder {
	if o.Error == nil {
		o.Destination, o.Error = destinations.New(o.Options)
	}
	return o
}

// Archives are not encrypted when no key is given
func (o *optionsBuilder) WithRecipients(keyFile, key string) *optionsBuilder {
	if o.Error == nil && (keyFile != "" || key != "") {
		o.Recipients, o.Error = xbprep.LoadRecipients(keyFile, key)
	}
	return o
}

func (o *optionsBuilder) WithIdentities(keyFile, key string) *optionsBuilder {
	if o.Error == nil && (keyFile != "" || key != "") {
		o.Identities, o.Error = xbprep.LoadIdentities(keyFile, key)
	}
	return o
}

func (o *optionsBuilder) FatalOnError() *optionsBuilder {
	if o.Error != nil {
		logrus.Fatal(o.Error)
	}
	return o
}
