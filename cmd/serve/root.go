package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cmdUtil "github.com/yaumlabs/bridge/cmd/util"
	"github.com/yaumlabs/bridge/rpc/common"
	"github.com/yaumlabs/bridge/rpc/dispatch"
	"github.com/yaumlabs/bridge/rpc/pump"
	"github.com/yaumlabs/bridge/rpc/registry"
	"github.com/yaumlabs/bridge/rpc/transport"
)

var (
	serveCmdConfig = common.DefaultServerConfig()
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Run a standalone bridge host",
		Long:    `Run a standalone bridge host with a demo command registry. The configuration can be set via command line flags or environment variables. The format of the environment variables is BRIDGE_<flag> (e.g. BRIDGE_ENDPOINT=localhost:9090).`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "localhost:8080", cmdUtil.WrapString("The address on which the bridge will listen"))

	key = "max-message-size"
	ServeCmd.PersistentFlags().Int(key, 10*1024*1024, cmdUtil.WrapString("Maximum frame payload size in bytes"))

	key = "handshake-timeout"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("Handshake timeout in seconds"))

	key = "tick-interval"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("Host tick interval in milliseconds - the pump drains the inbound queue once per tick"))

	key = "pump-budget"
	ServeCmd.PersistentFlags().Int(key, 3, cmdUtil.WrapString("Maximum wall time in milliseconds the pump may spend per tick"))

	key = "pump-max-messages"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("Maximum number of messages the pump processes per tick"))

	key = "queue-high-water"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("Inbound queue depth that triggers a back-pressure warning"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to disable Nagle's algorithm on accepted sockets"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("TCP keepalive interval in seconds (0 disables)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional address for the Prometheus /metrics endpoint (empty disables)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("Log level (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.MaxMessageSize = viper.GetInt("max-message-size")
	serveCmdConfig.HandshakeTimeoutSec = viper.GetInt("handshake-timeout")
	serveCmdConfig.PumpBudget = time.Duration(viper.GetInt("pump-budget")) * time.Millisecond
	serveCmdConfig.PumpMaxMessages = viper.GetInt("pump-max-messages")
	serveCmdConfig.QueueHighWater = viper.GetInt("queue-high-water")
	serveCmdConfig.Socket.TCPNoDelay = viper.GetBool("tcp-nodelay")
	serveCmdConfig.Socket.TCPKeepAliveSec = viper.GetInt("tcp-keepalive")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return common.SetLogLevel(serveCmdConfig.LogLevel)
}

// run starts the bridge host and blocks until interrupted
func run(_ *cobra.Command, _ []string) error {
	logger := common.GetLogger("serve")
	logger.Infof(serveCmdConfig.String())

	server := transport.NewServer(serveCmdConfig)

	reg := registry.New()
	if err := registerBuiltins(reg, server); err != nil {
		return err
	}

	if err := server.Start(); err != nil {
		return err
	}

	p := pump.New(server.Inbound(), dispatch.New(reg), pump.Events{}, serveCmdConfig)

	if addr := viper.GetString("metrics-endpoint"); addr != "" {
		go serveMetrics(addr, logger)
	}

	// Host tick: the pump drains once per tick on this goroutine, which
	// stands in for the embedding application's main loop.
	tick := time.Duration(viper.GetInt("tick-interval")) * time.Millisecond
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx := context.Background()
	for {
		select {
		case <-ticker.C:
			p.Drain(ctx)
		case sig := <-sigCh:
			logger.Infof("received %s, shutting down", sig)
			server.Stop()
			// Drain whatever the shutdown produced so the stopped event
			// is processed before exit.
			for p.Drain(ctx) > 0 {
			}
			return nil
		}
	}
}

// serveMetrics exposes the process metrics in Prometheus text format.
func serveMetrics(addr string, logger interface{ Errorf(string, ...interface{}) }) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorf("metrics endpoint failed: %v", err)
	}
}

// registerBuiltins fills the registry with the demo commands served by
// the standalone host.
func registerBuiltins(reg *registry.Registry, server *transport.Server) error {
	entries := []*registry.Entry{
		{
			Name:        "echo",
			Description: "Returns the given parameters unchanged",
			Example:     `{"command":"echo","parameters":{"value":"x"}}`,
			Handler: func(_ context.Context, params map[string]any) (any, error) {
				return params, nil
			},
		},
		{
			Name:        "get_info",
			Description: "Returns information about the host process",
			Handler: func(_ context.Context, _ map[string]any) (any, error) {
				return hostInfo(server), nil
			},
		},
		{
			Name:        "get_schema",
			Description: "Returns the registered tools and resources",
			Handler: func(_ context.Context, _ map[string]any) (any, error) {
				return reg.Schema(), nil
			},
		},
	}

	for _, e := range entries {
		if err := reg.Register(e); err != nil {
			return fmt.Errorf("failed to register %s: %w", e.Name, err)
		}
	}

	return reg.RegisterResource(&registry.Entry{
		Name:        "system_info",
		Description: "Host process information as a resource",
		Handler: func(_ context.Context, _ map[string]any) (any, error) {
			return hostInfo(server), nil
		},
	})
}

func hostInfo(server *transport.Server) map[string]any {
	return map[string]any{
		"goVersion":   runtime.Version(),
		"os":          runtime.GOOS,
		"arch":        runtime.GOARCH,
		"goroutines":  runtime.NumGoroutine(),
		"connections": server.ConnectionCount(),
		"timestamp":   common.NowMillis(),
	}
}
