package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/aristath/lvglgen/internal/config"
	"github.com/aristath/lvglgen/internal/di"
	"github.com/aristath/lvglgen/internal/generator"
	"github.com/aristath/lvglgen/internal/project"
	"github.com/aristath/lvglgen/internal/server"
)

type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	stdout io.Writer
	stderr io.Writer
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("lvglgen "+name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// wire builds the container after flags have adjusted the configuration.
func (a *app) wire() (*di.Container, *di.JobInstances, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return di.Wire(a.cfg, a.log)
}

// build loads and translates the configuration without writing anything.
func (a *app) build(container *di.Container) (*generator.Output, error) {
	doc, err := project.Load(a.cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	return container.Generator.Build(doc)
}

func runGenerate(ctx context.Context, a *app, args []string) error {
	fs := a.flags("generate")
	fs.StringVar(&a.cfg.ConfigPath, "config", a.cfg.ConfigPath, "widget configuration `file`")
	fs.StringVar(&a.cfg.OutputDir, "out", a.cfg.OutputDir, "output `directory` for the C++ sources")
	fs.BoolVar(&a.cfg.Force, "force", a.cfg.Force, "write even when inputs are unchanged")
	if err := fs.Parse(args); err != nil {
		return err
	}

	container, _, err := a.wire()
	if err != nil {
		return err
	}
	defer container.Close()

	res, err := container.Generator.Generate(ctx, generator.Options{
		ConfigPath: a.cfg.ConfigPath,
		OutputDir:  a.cfg.OutputDir,
		Force:      a.cfg.Force,
	})
	if err != nil {
		return err
	}

	if res.Skipped {
		fmt.Fprintf(a.stdout, "%s is up to date (run %s)\n", a.cfg.OutputDir, res.RunID)
		return nil
	}
	fmt.Fprintf(a.stdout, "wrote %d files to %s in %s (run %s)\n",
		len(res.Files), a.cfg.OutputDir, res.Duration.Round(time.Millisecond), res.RunID)
	for _, f := range res.Files {
		fmt.Fprintf(a.stdout, "  %-20s %s\n", f.Name, humanize.IBytes(uint64(len(f.Content))))
	}
	fmt.Fprintf(a.stdout, "%d widgets, %d deferred loads\n", len(res.Widgets), len(res.Loads))
	return nil
}

func runPlan(ctx context.Context, a *app, args []string) error {
	fs := a.flags("plan")
	fs.StringVar(&a.cfg.ConfigPath, "config", a.cfg.ConfigPath, "widget configuration `file`")
	fs.IntVar(&a.cfg.Memory.PSRAMBytes, "psram", a.cfg.Memory.PSRAMBytes, "PSRAM capacity in `bytes`")
	fs.IntVar(&a.cfg.Memory.InternalBytes, "internal", a.cfg.Memory.InternalBytes, "internal RAM capacity in `bytes`")
	if err := fs.Parse(args); err != nil {
		return err
	}

	container, _, err := a.wire()
	if err != nil {
		return err
	}
	defer container.Close()

	out, err := a.build(container)
	if err != nil {
		return err
	}
	report, err := container.Generator.Plan(ctx, out)
	if err != nil {
		return err
	}
	if err := report.Write(a.stdout); err != nil {
		return err
	}
	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d loads do not fit", n, len(report.Entries))
	}
	return nil
}

func runPreview(ctx context.Context, a *app, args []string) error {
	fs := a.flags("preview")
	fs.StringVar(&a.cfg.ConfigPath, "config", a.cfg.ConfigPath, "widget configuration `file`")
	fs.StringVar(&a.cfg.PreviewDir, "out", a.cfg.PreviewDir, "output `directory` for PNG files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	container, _, err := a.wire()
	if err != nil {
		return err
	}
	defer container.Close()

	out, err := a.build(container)
	if err != nil {
		return err
	}
	paths, err := container.Generator.Previews(out, a.cfg.PreviewDir)
	for _, p := range paths {
		fmt.Fprintln(a.stdout, p)
	}
	return err
}

func runServe(ctx context.Context, a *app, args []string) error {
	fs := a.flags("serve")
	fs.IntVar(&a.cfg.Port, "port", a.cfg.Port, "HTTP `port`")
	if err := fs.Parse(args); err != nil {
		return err
	}

	container, _, err := a.wire()
	if err != nil {
		return err
	}
	defer container.Close()

	container.Scheduler.Start()
	defer container.Scheduler.Stop()

	srv := server.New(server.Config{
		Log:       a.log,
		Config:    a.cfg,
		Container: container,
		Port:      a.cfg.Port,
		DevMode:   a.cfg.DevMode,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("Server forced to shutdown")
	}
	a.log.Info().Msg("Server stopped")
	return nil
}

func runHistory(ctx context.Context, a *app, args []string) error {
	fs := a.flags("history")
	limit := fs.Int("limit", 20, "number of runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	container, _, err := a.wire()
	if err != nil {
		return err
	}
	defer container.Close()

	runs, err := container.HistoryRepo.List(*limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tWIDGETS\tLOADS\tERRORS\tDURATION\tCONFIG")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%dms\t%s\n",
			r.ID, humanize.Time(r.StartedAt), r.Status, r.Widgets, r.Loads, r.Errors, r.DurationMS, r.ConfigPath)
	}
	return tw.Flush()
}
