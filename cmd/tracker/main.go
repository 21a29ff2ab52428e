// Command tracker is the GNSS tracker firmware core's entry point. It
// selects the GNSS UART, wires the orchestrator, and pumps bytes from the
// GNSS port into it, following the same select-a-port-then-run-a-loop
// shape as cmd/gnss's CLI entry point. No host BLE-UART transport is
// connected.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bramburn/go_ntrip/internal/orchestrator"
	"github.com/bramburn/go_ntrip/internal/sdfs"
	"github.com/bramburn/go_ntrip/internal/serialport"
)

func main() {
	portName := selectPort()
	if portName == "" {
		log.Fatal("No port selected. Exiting.")
	}

	cfg := serialport.DefaultConfig()
	gnssPort := serialport.New(cfg)

	fmt.Printf("Opening GNSS UART %s at %d baud...\n", portName, cfg.BaudRate)
	if err := gnssPort.Open(portName); err != nil {
		handleConnectionError(err, portName)
		return
	}
	defer gnssPort.Close()

	dataDir := dataDirFromEnv()
	fs := sdfs.New(dataDir)

	oCfg := orchestrator.DefaultConfig()
	oCfg.GNSSPortName = portName
	oCfg.TrackDir = dataDir

	orc := orchestrator.New(oCfg, log.Default(), gnssPort, fs, nil)
	orc.Machine().CompleteInit(time.Now(), true)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go orc.Run(ctx)
	go pumpGNSS(ctx, gnssPort, orc)

	fmt.Println("Tracker core running. Press Ctrl+C to exit.")
	<-ctx.Done()
	fmt.Println("Shutting down.")
}

// pumpGNSS reads the GNSS UART in a tight loop and hands every chunk to the
// orchestrator's framing codec, the cooperative-scheduler idiom
// gnss_receiver.go uses for its read task.
func pumpGNSS(ctx context.Context, port serialport.Port, orc *orchestrator.Orchestrator) {
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := port.Read(buf)
		if err != nil {
			continue // read timeouts are expected at the configured interval
		}
		if n == 0 {
			continue
		}
		orc.FeedGNSSBytes(time.Now(), buf[:n])
	}
}

func dataDirFromEnv() string {
	if d := os.Getenv("TRACKER_DATA_DIR"); d != "" {
		return d
	}
	return "."
}

// selectPort prompts the user to select a GNSS UART, following the same
// numbered-list prompt as cmd/gnss's selectPort.
func selectPort() string {
	details, err := serialport.GetPortDetails()
	if err != nil || len(details) == 0 {
		log.Fatal("No serial ports found. Please check your connections.")
	}

	if len(details) == 1 {
		fmt.Printf("Only one port available. Using %s\n", details[0].Name)
		return details[0].Name
	}

	fmt.Println("Available serial ports:")
	for i, d := range details {
		portInfo := fmt.Sprintf("%d: %s", i+1, d.Name)
		if d.IsUSB {
			portInfo += fmt.Sprintf(" [USB: VID:%04X PID:%04X %s]", d.VID, d.PID, d.Product)
		}
		fmt.Println(portInfo)
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("Enter port number (or 0 to exit): ")
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)

		var selection int
		if _, err := fmt.Sscanf(input, "%d", &selection); err == nil {
			if selection == 0 {
				return ""
			}
			if selection > 0 && selection <= len(details) {
				return details[selection-1].Name
			}
		}
		fmt.Println("Invalid selection. Please try again.")
	}
}

func handleConnectionError(err error, portName string) {
	log.Printf("Error opening GNSS UART %s: %v", portName, err)
	fmt.Println("\nTroubleshooting tips:")
	fmt.Println("1. Check if the GNSS receiver is properly connected")
	fmt.Println("2. Verify that no other application is using the port")
	fmt.Println("3. Try a different USB port")
	fmt.Println("4. Check if the correct drivers are installed")
}
