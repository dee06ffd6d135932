// ABOUTME: Command line client for the capture server control API
// ABOUTME: Drives session lifecycle, outputs and server discovery from the shell
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/CaptureKit/capturekit-go/internal/control"
	"github.com/CaptureKit/capturekit-go/internal/discovery"
)

var (
	addr    = flag.String("addr", "localhost:9001", "Control API address")
	timeout = flag.Duration("timeout", 3*time.Second, "Discovery timeout")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: capture-ctl [flags] <command> [args]

Commands:
  start                          Start the capture session
  stop                           Stop the capture session
  pause                          Pause delivery (capture keeps running)
  resume                         Resume a paused session
  stats                          Print session statistics
  outputs                        List registered outputs
  add <file|network|playback> [path|addr]
                                 Add an output sink
  remove <id>                    Remove an output sink by id
  discover                       Find capture servers on the local network

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cmd := flag.Arg(0)
	if cmd == "discover" {
		runDiscover()
		return
	}

	client := control.NewClient(*addr)
	if err := client.Connect(); err != nil {
		log.Fatalf("error connecting to %s: %v", *addr, err)
	}
	defer client.Close()

	var err error
	switch cmd {
	case "start":
		err = client.Start()
	case "stop":
		err = client.Stop()
	case "pause":
		err = client.Pause()
	case "resume":
		err = client.Resume()
	case "stats":
		err = runStats(client)
	case "outputs":
		err = runOutputs(client)
	case "add":
		err = runAdd(client, flag.Args()[1:])
	case "remove":
		err = runRemove(client, flag.Args()[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
	if isLifecycle(cmd) {
		fmt.Printf("%s: ok\n", cmd)
	}
}

func isLifecycle(cmd string) bool {
	switch cmd {
	case "start", "stop", "pause", "resume":
		return true
	}
	return false
}

func runStats(client *control.Client) error {
	stats, err := client.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("State:    %s\n", stats.State)
	fmt.Printf("Format:   %s\n", stats.Format)
	fmt.Printf("Outputs:  %d\n", stats.SinkCount)
	fmt.Printf("Buffers:  %d (%d frames)\n", stats.BuffersCaptured, stats.FramesCaptured)
	fmt.Printf("Queue:    %d now, %d peak, %d dropped (%.1f%%)\n",
		stats.QueueLen, stats.QueuePeak, stats.QueueDropped, stats.QueueDropRate*100)
	return nil
}

func runOutputs(client *control.Client) error {
	outputs, err := client.Outputs()
	if err != nil {
		return err
	}
	if len(outputs) == 0 {
		fmt.Println("no outputs registered")
		return nil
	}
	for _, out := range outputs {
		fmt.Printf("%s\t%s\n", out.ID, out.Kind)
	}
	return nil
}

func runAdd(client *control.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: add <file|network|playback> [path|addr]")
	}
	payload := control.AddOutputPayload{Kind: args[0]}
	if len(args) > 1 {
		switch args[0] {
		case "file":
			payload.Path = args[1]
		case "network":
			payload.Addr = args[1]
		}
	}
	info, err := client.AddOutput(payload)
	if err != nil {
		return err
	}
	fmt.Printf("added %s output %s\n", info.Kind, info.ID)
	return nil
}

func runRemove(client *control.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: remove <id>")
	}
	if err := client.RemoveOutput(args[0]); err != nil {
		return err
	}
	fmt.Printf("removed output %s\n", args[0])
	return nil
}

func runDiscover() {
	servers, err := discovery.Browse(*timeout)
	if err != nil {
		log.Fatalf("discovery failed: %v", err)
	}
	if len(servers) == 0 {
		fmt.Println("no capture servers found")
		return
	}
	for _, s := range servers {
		fmt.Printf("%s\t%s:%d\n", s.Name, s.Host, s.Port)
	}
}
