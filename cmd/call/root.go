package call

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cmdUtil "github.com/yaumlabs/bridge/cmd/util"
	"github.com/yaumlabs/bridge/rpc/client"
	"github.com/yaumlabs/bridge/rpc/common"
)

var (
	// CallCmd sends a single command to a running bridge host
	CallCmd = &cobra.Command{
		Use:   "call <command>",
		Short: "Send a command to a bridge host and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// Add common client flags
	cmdUtil.SetupClientFlags(CallCmd)

	CallCmd.PersistentFlags().String("params", "", cmdUtil.WrapString("Command parameters as a JSON object, e.g. '{\"value\":\"x\"}'"))
}

func run(cmd *cobra.Command, args []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := cmdUtil.GetClientConfig()
	if err := common.SetLogLevel(config.LogLevel); err != nil {
		return err
	}

	var params map[string]any
	if raw := viper.GetString("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return fmt.Errorf("invalid --params: %w", err)
		}
	}

	c := client.New(config)
	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	result, err := c.Request(ctx, args[0], params)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
