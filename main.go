package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alexflint/go-arg"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tracecap/internal/capture"
	"tracecap/internal/config"
	"tracecap/internal/engine"
	"tracecap/internal/handlers"
	"tracecap/internal/parser"
	"tracecap/internal/printer"
	"tracecap/internal/publish"
)

type args struct {
	PID         int    `arg:"-p,--pid" default:"0" placeholder:"PID" help:"process id to trace (accepted, not used for filtering yet)"`
	Dev         string `arg:"-d,--dev" placeholder:"DEVICE" help:"network device name [default: first device with an address]"`
	Count       *uint8 `arg:"-c,--count" placeholder:"COUNT" help:"number of packets to capture, 0 = unlimited [default: 0]"`
	Read        string `arg:"-r,--read" placeholder:"FILE" help:"replay a pcap or pcapng file instead of capturing"`
	Config      string `arg:"--config" placeholder:"FILE" help:"YAML configuration file"`
	HexDump     bool   `arg:"-x,--hex" help:"print a hex dump after each frame"`
	Depth       int    `arg:"--depth" placeholder:"N" help:"maximum number of layers decoded per frame"`
	Listen      string `arg:"--listen" placeholder:"ADDR" help:"serve a WebSocket live view on ADDR"`
	NATSURL     string `arg:"--nats-url" placeholder:"URL" help:"publish decoded frames to this NATS server"`
	NATSSubject string `arg:"--nats-subject" placeholder:"SUBJECT" help:"NATS subject for decoded frames"`
	Verbose     bool   `arg:"-v,--verbose" help:"log debug diagnostics"`
	ListDevices bool   `arg:"-D,--list-devices" help:"print the available capture devices and exit"`
}

func (args) Description() string {
	return "Captures frames from a network interface and prints each one as a tree of decoded protocol fields."
}

// apply overlays the flags that were given on cfg.
func (a args) apply(cfg *config.Config) {
	if a.Dev != "" {
		cfg.Capture.Device = a.Dev
	}
	if a.Count != nil {
		cfg.Capture.Count = int(*a.Count)
	}
	if a.HexDump {
		cfg.Output.HexDump = true
	}
	if a.Depth > 0 {
		cfg.Dissect.MaxDepth = a.Depth
	}
	if a.Listen != "" {
		cfg.LiveView.Listen = a.Listen
	}
	if a.NATSURL != "" {
		cfg.NATS.URL = a.NATSURL
	}
	if a.NATSSubject != "" {
		cfg.NATS.Subject = a.NATSSubject
	}
}

func main() {
	var a args
	arg.MustParse(&a)

	log, err := newLogger(a.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to instantiate logger: %s\n", err)
		os.Exit(1)
	}

	if err := run(a, log); err != nil {
		log.Error(err)
		log.Sync()
		os.Exit(1)
	}
	log.Sync()
}

func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func run(a args, log *zap.SugaredLogger) error {
	if a.ListDevices {
		devs, err := capture.ListInterfaces()
		if err != nil {
			return err
		}
		printDevices(os.Stdout, devs)
		return nil
	}

	cfg := config.Default()
	if a.Config != "" {
		loaded, err := config.LoadConfig(a.Config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	a.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	fmt.Printf("Tracing PID: %d\n", a.PID)

	src, err := openSource(cfg, a.Read)
	if err != nil {
		return err
	}
	defer src.Close()

	reg := parser.DefaultRegistry(parser.WithMaxVLANTags(cfg.Dissect.MaxVLANTags))
	pipe := parser.New(reg, parser.WithMaxDepth(cfg.Dissect.MaxDepth))
	out := printer.New(os.Stdout,
		printer.WithIndent(cfg.Output.Indent),
		printer.WithHexDump(cfg.Output.HexDump),
	)
	eng := engine.New(src, pipe, out, engine.WithLogger(log))

	if cfg.NATS.URL != "" {
		pub, err := publish.Connect(cfg.NATS.URL, cfg.NATS.Subject, log)
		if err != nil {
			return fmt.Errorf("connect to NATS at %s: %w", cfg.NATS.URL, err)
		}
		defer pub.Close()
		eng.RegisterClient(pub)
	}

	count := cfg.Capture.Count
	if count == 0 {
		fmt.Println("Capturing unlimited packets")
	} else {
		fmt.Printf("Capturing %d packets\n", count)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	g.Go(func() error {
		defer stopServer()
		// A statistics failure is already logged by the engine and is not
		// fatal.
		eng.Run(gctx, count)
		return nil
	})
	if cfg.LiveView.Listen != "" {
		router := handlers.NewRouter(eng, log)
		g.Go(func() error {
			return handlers.Serve(srvCtx, cfg.LiveView.Listen, router, log)
		})
	}
	return g.Wait()
}

// printDevices lists devices one per line, numbered from 1, with their
// description and addresses when known.
func printDevices(w io.Writer, devs []capture.InterfaceInfo) {
	for i, d := range devs {
		line := fmt.Sprintf("%d. %s", i+1, d.Name)
		if d.Description != "" {
			line += " (" + d.Description + ")"
		}
		if len(d.Addresses) > 0 {
			addrs := make([]string, len(d.Addresses))
			for j, a := range d.Addresses {
				addrs[j] = a.String()
			}
			line += " [" + strings.Join(addrs, ", ") + "]"
		}
		fmt.Fprintln(w, line)
	}
}

func openSource(cfg *config.Config, file string) (capture.Source, error) {
	if file != "" {
		fmt.Printf("Reading from file: %s\n", file)
		return capture.OpenFile(file)
	}

	device := cfg.Capture.Device
	if device == "" {
		d, err := capture.DefaultDevice()
		if err != nil {
			return nil, &capture.OpenError{Device: "default device", Err: err}
		}
		device = d
	}
	fmt.Printf("Capturing on device: %s\n", device)

	opts, err := cfg.CaptureOptions()
	if err != nil {
		return nil, err
	}
	return capture.OpenLive(device, opts)
}
