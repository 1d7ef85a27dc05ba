package main

import (
	"github.com/sloonz/xbprep/cmd"
)

func main() {
	cmd.Execute()
}
