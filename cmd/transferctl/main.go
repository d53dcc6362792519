// Command transferctl drives the planning service from the terminal:
// it submits runs, follows their progress, and downloads the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"transfer-planner/internal/client"
	"transfer-planner/internal/domain"
	"transfer-planner/internal/lifecycle"
	"transfer-planner/internal/poll"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(os.Args[2:])
	case "status":
		err = cmdStatus(os.Args[2:])
	case "reset":
		err = cmdReset(os.Args[2:])
	case "download":
		err = cmdDownload(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: transferctl <command> [flags]

commands:
  run        submit a planning run and follow it to completion
  status     print the current service status
  reset      cancel any active run and clear the service state
  download   fetch an output workbook

common flags:
  -server    service base URL (default http://localhost:8090)
`)
}

func serverFlag(fs *flag.FlagSet) *string {
	def := os.Getenv("TP_SERVER")
	if def == "" {
		def = "http://localhost:8090"
	}
	return fs.String("server", def, "service base URL")
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	server := serverFlag(fs)
	defaults := domain.DefaultParameters()
	months := fs.Int("months", defaults.Months, "months of sales history")
	minDays := fs.Int("min-days", defaults.MinDays, "minimum coverage days an origin keeps")
	maxDays := fs.Int("max-days", defaults.MaxDays, "coverage days a destination aims for")
	safety := fs.Float64("safety", defaults.SafetyRatio, "share of warehouse stock the drain keeps back")
	allowSeed := fs.Bool("allow-seed", false, "allow sending references a store never carried")
	saveIntermediates := fs.Bool("intermediates", false, "also save processed sales and stock workbooks")
	debug := fs.Bool("debug", false, "ask the service for verbose run output")
	outDir := fs.String("out", ".", "directory for downloaded workbooks")
	if err := fs.Parse(args); err != nil {
		return err
	}

	params := domain.JobParameters{
		Months:            *months,
		Debug:             *debug,
		SaveIntermediates: *saveIntermediates,
		MinDays:           *minDays,
		MaxDays:           *maxDays,
		SafetyRatio:       *safety,
		AllowSeed:         *allowSeed,
	}

	bus := lifecycle.NewEventBus(0)
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctl := lifecycle.NewController(
		client.New(*server),
		poll.NewScheduler(lifecycle.PollInterval),
		bus,
		log,
	)
	defer ctl.Close()

	ctx := context.Background()
	if err := ctl.Submit(ctx, params); err != nil {
		return err
	}

	lastSeq := renderEvents(bus, 0)
	for !ctl.State().Terminal() {
		time.Sleep(200 * time.Millisecond)
		lastSeq = renderEvents(bus, lastSeq)
	}
	lastSeq = renderEvents(bus, lastSeq)

	if ctl.State() == domain.StateFailed {
		return fmt.Errorf("run failed")
	}

	c := client.New(*server)
	for _, name := range ctl.LastStatus().OutputFiles {
		path, err := c.Download(ctx, name, *outDir)
		if err != nil {
			return fmt.Errorf("downloading %s: %w", name, err)
		}
		fmt.Println("saved", path)
	}
	return nil
}

func renderEvents(bus *lifecycle.EventBus, after int64) int64 {
	last := after
	for _, ev := range bus.Since(after) {
		printEvent(ev)
		last = ev.Seq
	}
	return last
}

func printEvent(ev lifecycle.Event) {
	stamp := ev.Timestamp.Local().Format("15:04:05")
	switch ev.Type {
	case lifecycle.EventTypeValidationFailed:
		fmt.Printf("%s  invalid parameters: %s\n", stamp, ev.Message)
	case lifecycle.EventTypeSubmitted:
		fmt.Printf("%s  run submitted\n", stamp)
	case lifecycle.EventTypeProgress:
		fmt.Printf("%s  %3d%%  %s\n", stamp, ev.Progress, ev.Stage)
	case lifecycle.EventTypePollWarning:
		fmt.Printf("%s  poll warning: %s\n", stamp, ev.Message)
	case lifecycle.EventTypeCompleted:
		fmt.Printf("%s  completed: %s\n", stamp, strings.Join(ev.OutputFiles, ", "))
	case lifecycle.EventTypeFailed:
		fmt.Printf("%s  failed: %s\n", stamp, ev.Message)
	case lifecycle.EventTypeReset:
		fmt.Printf("%s  reset\n", stamp)
	}
}

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	server := serverFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := client.New(*server).Poll(ctx)
	if err != nil {
		return err
	}

	if st.Running {
		fmt.Printf("running  %3d%%  %s\n", st.Progress, st.Stage)
		return nil
	}
	switch {
	case st.Error != "":
		fmt.Println("failed:", st.Error)
	case len(st.OutputFiles) > 0:
		fmt.Println("completed:", strings.Join(st.OutputFiles, ", "))
	default:
		fmt.Println("idle")
	}
	return nil
}

func cmdReset(args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	server := serverFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.New(*server).Reset(ctx); err != nil {
		return err
	}
	fmt.Println("reset")
	return nil
}

func cmdDownload(args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	server := serverFlag(fs)
	outDir := fs.String("out", ".", "directory for downloaded workbooks")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("download needs at least one file name")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	c := client.New(*server)
	for _, name := range fs.Args() {
		path, err := c.Download(ctx, name, *outDir)
		if err != nil {
			return fmt.Errorf("downloading %s: %w", name, err)
		}
		fmt.Println("saved", path)
	}
	return nil
}
