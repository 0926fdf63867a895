package perf

import (
	"encoding/csv"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cmdUtil "github.com/streamforge/physport/cmd/util"
)

var (
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Load generator for physport echo servers",
		Long:    `Load generator for physport echo servers. Opens a number of concurrent TCP connections against a server started with "physport serve --echo", sends messages on each and measures the round-trip latency. The configuration can be set via command line flags or environment variables. The format of the environment variables is PHYSPORT_<flag> (e.g. PHYSPORT_ENDPOINT=localhost:9000)`,
		PreRunE: processPerfConfig,
		RunE:    run,
	}

	perfEndpoint    = "localhost:9000"
	perfConnections = 10
	perfMessages    = 1000
	perfPayloadSize = 1024
)

func init() {
	// add flags
	key := "endpoint"
	PerfCmd.PersistentFlags().String(key, "localhost:9000", cmdUtil.WrapString("The address of the echo server to connect to"))

	key = "connections"
	PerfCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("Number of concurrent connections to open"))

	key = "messages"
	PerfCmd.PersistentFlags().Int(key, 1000, cmdUtil.WrapString("Number of messages to send per connection"))

	key = "payload-size"
	PerfCmd.PersistentFlags().Int(key, 1024, cmdUtil.WrapString("Size of each message payload in bytes"))

	key = "csv"
	PerfCmd.Flags().String(key, "", cmdUtil.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfEndpoint = viper.GetString("endpoint")
	perfConnections = viper.GetInt("connections")
	perfMessages = viper.GetInt("messages")
	perfPayloadSize = viper.GetInt("payload-size")

	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Load generator for physport echo servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Endpoint: %s\n", perfEndpoint)
	fmt.Printf("Connections: %d\n", perfConnections)
	fmt.Printf("Messages per connection: %d\n", perfMessages)
	fmt.Printf("Payload size: %d bytes\n", perfPayloadSize)
	fmt.Println()

	fmt.Println("starting test...")

	latency := gometrics.NewHistogram(gometrics.NewExpDecaySample(1028, 0.015))
	throughput := gometrics.NewMeter()

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)

	start := time.Now()

	for i := 0; i < perfConnections; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runConnection(latency, throughput); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	if firstErr != nil {
		return fmt.Errorf("test failed: %v", firstErr)
	}

	printResults(latency, throughput, elapsed)

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, latency, throughput, elapsed); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// runConnection opens one connection and performs the send/receive round
// trips, recording each into the shared histogram and meter
func runConnection(latency gometrics.Histogram, throughput gometrics.Meter) error {
	conn, err := net.Dial("tcp", perfEndpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", perfEndpoint, err)
	}
	defer conn.Close()

	payload := make([]byte, perfPayloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}
	reply := make([]byte, perfPayloadSize)

	for i := 0; i < perfMessages; i++ {
		begin := time.Now()

		if _, err := conn.Write(payload); err != nil {
			return fmt.Errorf("write failed: %v", err)
		}
		if _, err := io.ReadFull(conn, reply); err != nil {
			return fmt.Errorf("read failed: %v", err)
		}

		latency.Update(time.Since(begin).Nanoseconds())
		throughput.Mark(1)
	}

	return nil
}

// printResults prints the latency distribution and throughput in a formatted way
func printResults(latency gometrics.Histogram, throughput gometrics.Meter, elapsed time.Duration) {
	snapshot := latency.Snapshot()
	ps := snapshot.Percentiles([]float64{0.5, 0.95, 0.99})

	total := snapshot.Count()
	opsPerSec := float64(total) / elapsed.Seconds()

	fmt.Println()
	fmt.Printf("%-20s%d\n", "round trips", total)
	fmt.Printf("%-20s%s\n", "elapsed", elapsed.Round(time.Millisecond))
	fmt.Printf("%-20s%.0f ops/sec\n", "throughput", opsPerSec)
	fmt.Printf("%-20s%.0f ops/sec\n", "meter rate", throughput.Snapshot().RateMean())
	fmt.Printf("%-20s%s\n", "latency mean", time.Duration(snapshot.Mean()))
	fmt.Printf("%-20s%s\n", "latency p50", time.Duration(ps[0]))
	fmt.Printf("%-20s%s\n", "latency p95", time.Duration(ps[1]))
	fmt.Printf("%-20s%s\n", "latency p99", time.Duration(ps[2]))
	fmt.Printf("%-20s%s\n", "latency max", time.Duration(snapshot.Max()))
}

// writeResultsToCSV writes the benchmark results to a CSV file
func writeResultsToCSV(csvPath string, latency gometrics.Histogram, throughput gometrics.Meter, elapsed time.Duration) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Endpoint", "Connections", "MessagesPerConnection", "PayloadSizeBytes",
		"RoundTrips", "ElapsedMs", "OpsPerSec",
		"LatencyMeanNs", "LatencyP50Ns", "LatencyP95Ns", "LatencyP99Ns", "LatencyMaxNs",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	snapshot := latency.Snapshot()
	ps := snapshot.Percentiles([]float64{0.5, 0.95, 0.99})
	opsPerSec := float64(snapshot.Count()) / elapsed.Seconds()

	row := []string{
		perfEndpoint,
		strconv.Itoa(perfConnections),
		strconv.Itoa(perfMessages),
		strconv.Itoa(perfPayloadSize),
		strconv.FormatInt(snapshot.Count(), 10),
		strconv.FormatInt(elapsed.Milliseconds(), 10),
		fmt.Sprintf("%.0f", opsPerSec),
		fmt.Sprintf("%.0f", snapshot.Mean()),
		fmt.Sprintf("%.0f", ps[0]),
		fmt.Sprintf("%.0f", ps[1]),
		fmt.Sprintf("%.0f", ps[2]),
		strconv.FormatInt(snapshot.Max(), 10),
	}
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("failed to write CSV row: %v", err)
	}

	return nil
}
