package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonesrussell/north-cloud/shelter-sync/cmd"
	"github.com/jonesrussell/north-cloud/shelter-sync/cmd/common"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	common.Version = version
	if err := cmd.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
