package util

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yaumlabs/bridge/rpc/common"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig initializes configuration from environment variables. The
// format of the variables is BRIDGE_<flag> (e.g. BRIDGE_LOG_LEVEL=debug).
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("bridge")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// SetupClientFlags adds the common client connection flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the bridge host"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 60, WrapString("Per-request timeout in seconds"))

	key = "ping-interval"
	cmd.PersistentFlags().Int(key, 30, WrapString("Keepalive ping interval in seconds"))

	key = "handshake-timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("Handshake timeout in seconds"))

	key = "max-message-size"
	cmd.PersistentFlags().Int(key, 10*1024*1024, WrapString("Maximum frame payload size in bytes"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("Log level (debug, info, warn, error)"))
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() common.ClientConfig {
	conf := common.DefaultClientConfig()
	conf.Endpoint = viper.GetString("endpoint")
	conf.RequestTimeout = time.Duration(viper.GetInt("timeout")) * time.Second
	conf.PingInterval = time.Duration(viper.GetInt("ping-interval")) * time.Second
	conf.HandshakeTimeoutSec = viper.GetInt("handshake-timeout")
	conf.MaxMessageSize = viper.GetInt("max-message-size")
	conf.LogLevel = viper.GetString("log-level")
	return conf
}
