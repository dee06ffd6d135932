// ABOUTME: Entry point for the capture server
// ABOUTME: Parses CLI flags, loads settings and runs the capture session
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/CaptureKit/capturekit-go/internal/conf"
	"github.com/CaptureKit/capturekit-go/internal/control"
	"github.com/CaptureKit/capturekit-go/internal/discovery"
	"github.com/CaptureKit/capturekit-go/internal/recorder"
	"github.com/CaptureKit/capturekit-go/internal/ui"
	"github.com/CaptureKit/capturekit-go/internal/version"
	"github.com/CaptureKit/capturekit-go/pkg/audio"
	"github.com/CaptureKit/capturekit-go/pkg/capture"
)

var (
	name     = flag.String("name", "", "Server friendly name (default: hostname-capture-server)")
	device   = flag.String("device", "", "Capture device name (default: system default)")
	record   = flag.String("record", "", "Record to WAV file path")
	noTUI    = flag.Bool("no-tui", false, "Run headless without the TUI")
	testTone = flag.Bool("test-tone", false, "Capture a generated test tone instead of a device")
)

func main() {
	flag.Parse()

	settings, err := conf.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	// Set up logging (both file and console)
	f, err := os.OpenFile(settings.Log.Path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if *noTUI {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	} else {
		// The TUI owns the terminal; logs go to the file only.
		log.SetOutput(f)
	}

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-capture-server", hostname)
	}

	log.Printf("Starting %s %s: %s", version.Product, version.Version, serverName)
	log.Printf("Logging to: %s", settings.Log.Path)

	format := audio.Format{
		SampleRate:  settings.Capture.SampleRate,
		Channels:    settings.Capture.Channels,
		BitDepth:    32,
		Interleaved: true,
		Float:       true,
	}

	var source capture.Source
	if *testTone || settings.Capture.TestTone {
		source = capture.NewTestTone(format, 440, 1024)
		log.Printf("Capture source: test tone")
	} else {
		deviceName := *device
		if deviceName == "" {
			deviceName = settings.Capture.Device
		}
		source = recorder.New(deviceName, format)
		log.Printf("Capture source: device %q", deviceName)
	}

	session := capture.NewSession(source, capture.Config{
		Format:    format,
		QueueSize: settings.Capture.QueueSize,
	})

	// Stream sink is always on; clients connect whenever they like.
	streamSink := capture.NewNetworkSink(settings.Network.StreamAddr)
	if err := session.AddOutput(streamSink); err != nil {
		log.Fatalf("error adding stream output: %v", err)
	}

	if *record != "" {
		if err := session.AddOutput(capture.NewFileSink(*record)); err != nil {
			log.Fatalf("error adding file output: %v", err)
		}
		log.Printf("Recording to: %s", *record)
	}

	if err := session.Start(); err != nil {
		log.Fatalf("error starting capture: %v", err)
	}

	// mDNS advertisement
	var advertiser *discovery.Advertiser
	if settings.Network.MDNS {
		advertiser, err = discovery.Advertise(serverName, streamPort(streamSink))
		if err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		}
	}

	// Control API
	ctrl := control.NewServer(settings.Network.ControlAddr, session)
	go func() {
		if err := ctrl.Start(); err != nil {
			log.Printf("Control server error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if *noTUI {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
	} else {
		done := make(chan struct{})
		go func() {
			if err := ui.Run(serverName, session); err != nil {
				log.Printf("TUI error: %v", err)
			}
			close(done)
		}()
		select {
		case sig := <-sigChan:
			log.Printf("Received %v signal, shutting down gracefully...", sig)
		case <-done:
			log.Printf("TUI quit, shutting down...")
		}
	}

	ctrl.Shutdown()
	if advertiser != nil {
		advertiser.Close()
	}
	switch session.State() {
	case capture.StateActive, capture.StatePaused:
		if err := session.Stop(); err != nil {
			log.Printf("error stopping session: %v", err)
		}
	}

	log.Printf("Capture server stopped")
}

// streamPort extracts the bound TCP port of the stream sink.
func streamPort(sink *capture.NetworkSink) int {
	addr := sink.Addr()
	if addr == nil {
		return 0
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
