package main

import (
	"fmt"
	"os"

	"github.com/imkarrer/jumpgate/cmd/jumpgate/server"
	"github.com/spf13/cobra"
)

// These should be set via `go build` during a release.
var (
	GitCommit = "undefined"
	GitRef    = "no-ref"
	Version   = "local"
)

func main() {
	root := cobra.Command{
		Use: "jumpgate",
	}

	root.AddCommand(
		server.NewCommand(Version, GitCommit, GitRef),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}
