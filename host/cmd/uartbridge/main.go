// Command uartbridge runs the interrupt-driven UART stack against a real
// serial device: bytes typed on stdin go out through the buffered driver,
// and received bytes are echoed to stdout.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"asynchal/hal"
	"asynchal/host/serial"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	verbose = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()

	if *verbose {
		hal.SetDebugWriter(func(s string) { fmt.Fprintln(os.Stderr, s) })
		hal.SetDebugEnabled(true)
	}

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	fmt.Printf("Opening %s...\n", *device)
	drv, bridge, err := serial.OpenBuffered(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer bridge.Close()

	fmt.Println("Connected. Type lines to send; Ctrl-D to exit.")

	ctx := context.Background()

	// Receive path: whatever arrives goes to stdout.
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := drv.Read(ctx, buf)
			if err != nil {
				return
			}
			os.Stdout.Write(buf[:n])
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := append(scanner.Bytes(), '\n')
		if _, err := drv.Write(ctx, line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: write failed: %v\n", err)
			os.Exit(1)
		}
		if err := drv.Flush(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: flush failed: %v\n", err)
			os.Exit(1)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}
