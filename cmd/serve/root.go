package serve

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cmdUtil "github.com/streamforge/physport/cmd/util"
	"github.com/streamforge/physport/port"
	"github.com/streamforge/physport/port/common"
	"github.com/streamforge/physport/port/socket"

	_ "net/http/pprof"
)

var (
	ServeCmd = &cobra.Command{
		Use:     "serve",
		Short:   "Run a physical port with an echo observer",
		Long:    `Run a physical port with an echo observer attached. The configuration can be set via command line flags or environment variables. The format of the environment variables is PHYSPORT_<flag> (e.g. PHYSPORT_ENDPOINT=0.0.0.0:9000)`,
		PreRunE: processConfig,
		RunE:    run,
	}

	serveType     = port.SocketTCP
	serveEndpoint = ""
	serveMetrics  = ""
	serveEcho     = false
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "type"
	ServeCmd.PersistentFlags().String(key, "tcp", cmdUtil.WrapString("Socket type to listen on (tcp, srt, udp)"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:9000", cmdUtil.WrapString("The address the port will listen on"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, common.DefaultWorkerCount, cmdUtil.WrapString("Fixed size of the worker pool for stream sockets. Every connection is pinned to one worker for its entire lifetime"))

	key = "dispatch-timeout-ms"
	ServeCmd.PersistentFlags().Int(key, 500, cmdUtil.WrapString("Timeout of one event loop iteration in milliseconds. Bounds how quickly the loop notices a stop request"))

	key = "send-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Socket send buffer size in KB (0 = OS default)"))

	key = "recv-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Socket receive buffer size in KB (0 = OS default)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to disable Nagle's algorithm on accepted connections (only for TCP)"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval for accepted connections (in seconds, only for TCP)"))

	key = "tcp-linger"
	ServeCmd.PersistentFlags().Int(key, -1, cmdUtil.WrapString("The linger time for accepted connections (in seconds, only for TCP, negative = OS default)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional address for the Prometheus metrics and pprof HTTP endpoint (empty = disabled)"))

	key = "echo"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Echo received payloads back to the sender (stream sockets only)"))
}

// processConfig reads the configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	socketType, err := port.ParseSocketType(viper.GetString("type"))
	if err != nil {
		return err
	}

	serveType = socketType
	serveEndpoint = viper.GetString("endpoint")
	serveMetrics = viper.GetString("metrics-endpoint")
	serveEcho = viper.GetBool("echo")

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	conf := cmdUtil.GetPortConfig()
	common.InitLoggers(conf)

	fmt.Printf("physport %s server on %s%s\n", serveType, serveEndpoint, conf.String())

	p := port.NewPort(conf)
	p.AddObserver(&echoObserver{echo: serveEcho})

	if !p.Create(serveType, serveEndpoint, conf.Socket.SendBufferSize, conf.Socket.RecvBufferSize) {
		return fmt.Errorf("failed to create %s port on %s", serveType, serveEndpoint)
	}

	// optional metrics + pprof endpoint
	if serveMetrics != "" {
		http.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			metrics.WritePrometheus(w, true)
		})
		go func() {
			if err := http.ListenAndServe(serveMetrics, nil); err != nil {
				fmt.Printf("metrics endpoint failed: %v\n", err)
			}
		}()
	}

	// wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if !p.Close() {
		return fmt.Errorf("failed to close port on %s", serveEndpoint)
	}

	return nil
}

// echoObserver logs lifecycle events and optionally echoes payloads back
type echoObserver struct {
	echo bool
}

func (o *echoObserver) OnConnected(client socket.IClient) {
	port.Logger.Infof("connected: %s", client)
}

func (o *echoObserver) OnDisconnected(client socket.IClient, reason port.DisconnectReason, err error) {
	if err != nil {
		port.Logger.Infof("disconnected: %s (%s: %v)", client, reason, err)
		return
	}
	port.Logger.Infof("disconnected: %s (%s)", client, reason)
}

func (o *echoObserver) OnDataReceived(client socket.IClient, remote net.Addr, data []byte) {
	port.Logger.Debugf("received %d bytes from %s", len(data), remote)

	if o.echo && client != nil {
		if err := client.Send(data); err != nil {
			port.Logger.Warningf("failed to echo to %s: %v", client, err)
		}
	}
}
