package main

import (
	"os"

	"github.com/qnaplxdunpriv/qnaplxdunpriv/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
