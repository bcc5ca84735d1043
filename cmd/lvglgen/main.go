// Package main is the lvglgen command. It turns a YAML description of LVGL
// arc labels and Lottie players into C++ sources for an ESP32 firmware
// build, and can plan the device memory the deferred Lottie loads need,
// render PNG previews, or serve all of this over HTTP.
//
// Usage:
//
//	lvglgen generate [-config lvgl.yaml] [-out build/lvgl] [-force]
//	lvglgen plan     [-config lvgl.yaml] [-psram bytes] [-internal bytes]
//	lvglgen preview  [-config lvgl.yaml] [-out build/preview]
//	lvglgen serve    [-port 8090]
//	lvglgen history  [-limit 20]
//
// Defaults come from the environment (and .env), see internal/config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/lvglgen/internal/config"
	"github.com/aristath/lvglgen/internal/validation"
	"github.com/aristath/lvglgen/pkg/logger"
)

// command runs one subcommand with its own arguments.
type command func(ctx context.Context, app *app, args []string) error

var commands = map[string]command{
	"generate": runGenerate,
	"plan":     runPlan,
	"preview":  runPreview,
	"serve":    runServe,
	"history":  runHistory,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage(stderr)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "lvglgen: unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true, Out: stderr})
		fallbackLog.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode, Out: stderr})
	logger.SetGlobalLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, log: log, stdout: stdout, stderr: stderr}
	err = cmd(ctx, a, args[1:])
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 2
	}

	var errs validation.Errors
	var inv *validation.Invalid
	switch {
	case errors.As(err, &errs):
		fmt.Fprintln(stderr, errs.Error())
		return 1
	case errors.As(err, &inv):
		fmt.Fprintln(stderr, inv.Error())
		return 1
	}
	log.Error().Err(err).Str("command", args[0]).Msg("Command failed")
	return 1
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: lvglgen <command> [flags]

commands:
  generate   validate the configuration and write the C++ sources
  plan       simulate the deferred Lottie loads against device memory
  preview    render one PNG per widget
  serve      run the HTTP API
  history    list recent generation runs

Run "lvglgen <command> -h" for the flags of a command.
`)
}
