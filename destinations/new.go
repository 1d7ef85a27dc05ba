package destinations

import (
	"github.com/sloonz/xbprep/lib"

	"fmt"

	"github.com/spf13/afero"
)

func New(options *xbprep.Options) (xbprep.Destination, error) {
	switch options.String["Type"] {
	case "fs":
		return newFSDestination(afero.NewOsFs(), options)
	case "ftp":
		return newFTPDestination(options)
	case "object-storage":
		return newObjectStorageDestination(options)
	default:
		return nil, fmt.Errorf("invalid destination type %v", options.String["Type"])
	}
}
