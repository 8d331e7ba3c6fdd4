// Command nusconsole is an interactive host-side console for a blelinkd
// peripheral: it scans for the device by name, prints every received JSON
// or raw line, and sends each stdin line to the device. Lines starting
// with '{' are sent as-is and classified by the peripheral; everything
// else travels as raw text.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PeterHeick/BleLink/internal/central"
	"github.com/PeterHeick/BleLink/internal/link"
)

func main() {
	name := flag.String("name", "BLE-LINK", "advertised name of the peripheral")
	scanTimeout := flag.Duration("scan-timeout", 12*time.Second, "per-attempt scan budget")
	attempts := flag.Int("attempts", 3, "connect attempts before giving up")
	flag.Parse()

	opts := central.DefaultClientOptions()
	opts.ScanTimeout = *scanTimeout
	opts.ConnectAttempts = *attempts

	client := central.NewClient(central.NewTinyGoAdapter(), *name, opts)
	client.OnReceiveJSON(func(doc link.Document) {
		fmt.Printf("[JSON] %v\n", doc)
	})
	client.OnReceiveRaw(func(line string) {
		fmt.Printf("[RAW ] %s\n", line)
	})

	log.Printf("Scanning for %q...", *name)
	if err := client.Connect(context.Background()); err != nil {
		log.Fatalf("connect: %v", err)
	}
	log.Println("Connected. Type lines to send, Ctrl+C to quit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		client.Disconnect()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := client.SendRaw(line); err != nil {
			slog.Error("[Console] send failed", "error", err)
		}
	}
	client.Disconnect()
}
