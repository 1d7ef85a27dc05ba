package tools

import (
	"github.com/sloonz/xbprep/lib"

	"fmt"
)

// Default tool
const DefaultType = "innobackupex"

// Create a new apply tool from options. The "Type" option selects the implementation.
func New(options *xbprep.Options) (xbprep.Applier, error) {
	typ := options.GetString("Type", DefaultType)
	switch typ {
	case "innobackupex":
		return newInnobackupexTool(options)
	case "xtrabackup", "mariabackup":
		return newXtrabackupTool(options, typ)
	case "command":
		return newCommandTool(options)
	default:
		return nil, fmt.Errorf("invalid tool type %v", typ)
	}
}
