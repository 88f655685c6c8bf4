// Command pumpconsole is a debug console for the pump and sensor boards:
// it opens their serial debug UART and streams log lines to stdout, for
// field diagnosis when the TCP control link is unavailable or suspect.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"syringepump/host/serial"
)

func main() {
	device := flag.String("device", "/dev/ttyUSB0", "debug UART device path")
	baud := flag.Int("baud", 115200, "debug UART baud rate")
	flag.Parse()

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	port, err := serial.Open(cfg)
	if err != nil {
		log.Fatalf("pumpconsole: open %s: %v", *device, err)
	}
	defer port.Close()

	fmt.Fprintf(os.Stderr, "pumpconsole: streaming %s at %d baud (Ctrl-C to exit)\n", *device, *baud)

	r := bufio.NewReader(port)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			fmt.Print(line)
		}
		if err != nil {
			if err == io.EOF {
				return
			}
			log.Fatalf("pumpconsole: read: %v", err)
		}
	}
}
