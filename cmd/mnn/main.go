// Package main provides the mnn command line tool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"k8s.io/klog/v2"

	"github.com/born-ml/mnn/internal/backend/reference"
	"github.com/born-ml/mnn/internal/config"
	"github.com/born-ml/mnn/internal/engine"
)

const version = "v0.1.0-dev"

var errUsage = errors.New("usage: mnn version | mnn inspect [-config file] [model]")

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() { fmt.Fprintln(os.Stderr, errUsage) }
	flag.Parse()
	defer klog.Flush()

	ctx := context.Background()
	if err := run(ctx, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		klog.Flush()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, w io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "version":
		fmt.Fprintf(w, "mnn %s\n", version)
		return nil
	case "inspect":
		return inspect(ctx, args[1:], w)
	default:
		return fmt.Errorf("unknown command %q\n%w", args[0], errUsage)
	}
}

func inspect(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "TOML configuration file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w\n%w", err, errUsage)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	switch fs.NArg() {
	case 0:
	case 1:
		cfg.Model = fs.Arg(0)
		cfg.Store = nil
	default:
		return errUsage
	}

	log := klog.FromContext(ctx)
	rt := reference.New()
	defer rt.Close()

	e, err := cfg.NewEngine(ctx, rt)
	if err != nil {
		return err
	}
	defer e.Close()

	s, err := e.CreateSession(cfg.Schedule)
	if err != nil {
		return err
	}
	log.V(2).Info("session created", "state", s.State().String())

	fmt.Fprintf(w, "model: %s\n", cfg.Model)
	inputs, err := e.Inputs(s)
	if err != nil {
		return err
	}
	printTensors(w, "inputs", inputs)
	outputs, err := e.Outputs(s)
	if err != nil {
		return err
	}
	printTensors(w, "outputs", outputs)

	memory, err := e.Memory(s)
	if err != nil {
		return err
	}
	flops, err := e.Flops(s)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "memory: %.3f MB\nflops: %.3f M\n", memory, flops)
	return nil
}

func printTensors(w io.Writer, title string, l engine.TensorList) {
	fmt.Fprintf(w, "%s:\n", title)
	for _, info := range l {
		raw := info.Raw()
		fmt.Fprintf(w, "  %s %s %s %s\n", info.Name, raw.Shape(), raw.DataType(), raw.DimensionType())
	}
}
