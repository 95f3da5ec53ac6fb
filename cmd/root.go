package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yaumlabs/bridge/cmd/call"
	"github.com/yaumlabs/bridge/cmd/serve"
)

const (
	Version = "0.3.1"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "bridge",
		Short: "framed RPC bridge for embedded editors and runtimes",
		Long: fmt.Sprintf(`bridge (v%s)

A framed bidirectional TCP transport that lets a lightweight remote
client issue structured commands into a long-lived host application,
with correlation ids, keepalive and a host-thread dispatch pump.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of bridge",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bridge v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(call.CallCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
