package main

import (
	"os"

	"github.com/couchcryptid/pollution-reports/internal/cli"
	"github.com/spf13/afero"
)

func main() {
	if err := cli.NewRootCmd(afero.NewOsFs()).Execute(); err != nil {
		os.Exit(1)
	}
}
