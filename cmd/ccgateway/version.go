package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fentz26/ccgateway/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of ccgateway",
	Run:   runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("%s version %s\n", version.DisplayName, version.Version)
	fmt.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go version: %s\n", runtime.Version())
}
