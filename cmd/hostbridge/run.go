package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/johnnohj/hostbridge/board"
	"github.com/johnnohj/hostbridge/bridge"
	"github.com/johnnohj/hostbridge/periph"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a demonstration scenario on a virtual board.",
	Long: "`run` builds a board with the loopback host and drives a small " +
		"blink-and-probe scenario over it. With --monitor the board stays " +
		"up afterwards so the diagnostics endpoints can be inspected.",
	Run: func(cmd *cobra.Command, args []string) {
		runScenario(cmd)
	},
}

func init() {
	runCmd.Flags().Bool("monitor", false,
		"start the monitoring server and keep the board running")
	runCmd.Flags().Int("monitor-port", 0,
		"monitoring server port, 0 picks a free one")
	runCmd.Flags().String("record", "",
		"record request traces into a SQLite database at this path prefix")
	runCmd.Flags().Bool("deferred", false,
		"fulfil requests on yield passes instead of inline")

	rootCmd.AddCommand(runCmd)
}

func runScenario(cmd *cobra.Command) {
	monitor, _ := cmd.Flags().GetBool("monitor")
	monitorPort, _ := cmd.Flags().GetInt("monitor-port")
	record, _ := cmd.Flags().GetString("record")
	deferred, _ := cmd.Flags().GetBool("deferred")

	if record == "" {
		record = os.Getenv("HOSTBRIDGE_RECORD")
	}

	// Manual mode lets TimeSleep fast-forward, so the scenario finishes
	// instantly with deterministic timestamps.
	builder := board.MakeBuilder().WithManualClock()
	if monitor {
		builder = builder.WithMonitoring(envOrFlagPort(monitorPort))
	}
	if record != "" {
		builder = builder.WithRecorderPath(record)
	}
	if deferred {
		builder = builder.WithDeferredCompleter()
	}

	brd := builder.Build()
	defer brd.Teardown()

	fmt.Printf("Board %s up\n", brd.ID())

	blinkAndProbe(brd)

	stats := brd.Table().Stats()
	fmt.Printf("Requests issued %d, completed %d, errored %d\n",
		stats.Issued, stats.Completed, stats.Errored)

	if monitor {
		fmt.Println("Monitoring server is running. Press Ctrl+C to stop.")
		waitForInterrupt(brd)
	}
}

// blinkAndProbe exercises every peripheral family once: a GPIO blink, an
// ADC sample, an I2C register write-read against a registered device, a
// SPI echo and a UART loopback round trip.
func blinkAndProbe(brd *board.Board) {
	const (
		ledPin     = 13
		sensorPin  = 4
		sclPin     = 22
		sdaPin     = 21
		sensorAddr = 0x48
	)

	mustCall(brd, bridge.GPIODirectionParams{Pin: ledPin, Output: true})
	for i := 0; i < 3; i++ {
		mustCall(brd, bridge.GPIOSetParams{Pin: ledPin, Value: true})
		mustCall(brd, bridge.TimeSleepParams{Milliseconds: 100})
		mustCall(brd, bridge.GPIOSetParams{Pin: ledPin, Value: false})
		mustCall(brd, bridge.TimeSleepParams{Milliseconds: 100})
	}

	mustCall(brd, bridge.AnalogInitParams{Pin: sensorPin})
	rsp := mustCall(brd, bridge.AnalogReadParams{Pin: sensorPin})
	fmt.Printf("ADC channel %d reads %d\n",
		sensorPin, rsp.(bridge.AnalogValueResponse).Value)

	mustCall(brd, bridge.I2CInitParams{
		SCL: sclPin, SDA: sdaPin, Frequency: 400_000,
	})
	h, err := brd.Buses().FindByPin(periph.BusI2C, sclPin)
	if err != nil {
		log.Fatalf("Error locating I2C bus: %v", err)
	}
	err = brd.Buses().RegisterDevice(h, sensorAddr, []byte{0x17, 0x2a})
	if err != nil {
		log.Fatalf("Error registering device: %v", err)
	}

	rsp = mustCall(brd, bridge.I2CWriteReadParams{
		Address:    sensorAddr,
		WriteData:  []byte{0x00},
		ReadLength: 2,
	})
	fmt.Printf("I2C device 0x%02x register 0 holds % x\n",
		sensorAddr, rsp.(bridge.DataResponse).Data)

	mustCall(brd, bridge.SPIInitParams{Clock: 18, MOSI: 23, MISO: 19})
	rsp = mustCall(brd, bridge.SPITransferParams{Data: []byte{0x9f}})
	fmt.Printf("SPI transfer echoed % x\n", rsp.(bridge.DataResponse).Data)

	mustCall(brd, bridge.UARTInitParams{
		TX: 1, RX: 3, Baudrate: 115_200, Bits: 8, Stop: 1,
	})
	mustCall(brd, bridge.UARTWriteParams{Data: []byte("ping")})
	rsp = mustCall(brd, bridge.UARTReadParams{Length: 16})
	fmt.Printf("UART loopback returned %q\n",
		string(rsp.(bridge.DataResponse).Data))

	rsp = mustCall(brd, bridge.TimeMonotonicParams{})
	fmt.Printf("Virtual monotonic time is %d ms\n",
		rsp.(bridge.TimeResponse).Milliseconds)
}

func mustCall(brd *board.Board, params bridge.Params) bridge.Response {
	rsp, err := brd.Call(params)
	if err != nil {
		log.Fatalf("Error running %s: %v", params.Kind(), err)
	}

	return rsp
}

// envOrFlagPort lets HOSTBRIDGE_MONITOR_PORT override the flag, so a .env
// file can pin the port across runs.
func envOrFlagPort(flagPort int) int {
	env := os.Getenv("HOSTBRIDGE_MONITOR_PORT")
	if env == "" {
		return flagPort
	}

	port, err := strconv.Atoi(env)
	if err != nil {
		log.Fatalf("Error parsing HOSTBRIDGE_MONITOR_PORT: %v", err)
	}

	return port
}

func waitForInterrupt(brd *board.Board) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	// Keep virtual time moving so the dashboard shows a live clock.
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = brd.Clock().AdvanceMS(1)
			brd.Yield()
		case <-sig:
			atexit.Exit(0)
		}
	}
}
