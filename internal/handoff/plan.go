package handoff

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// PlanEntry is the outcome of one simulated load.
type PlanEntry struct {
	WidgetID string
	Width    int
	Height   int
	Embedded bool
	PSRAM    int // bytes still held in PSRAM after the task terminated
	Internal int // bytes still held in internal RAM after the task terminated
	Err      error
}

// Report is the memory plan for a set of loads.
type Report struct {
	Entries  []PlanEntry
	PSRAM    RegionUsage
	Internal RegionUsage
}

// Failed counts loads that could not be scheduled.
func (r *Report) Failed() int {
	n := 0
	for _, e := range r.Entries {
		if e.Err != nil {
			n++
		}
	}
	return n
}

type nopDecoder struct{}

func (nopDecoder) Decode(Source, *Block, int, int) error { return nil }

// Plan runs every request, in order, through the real load sequence on an
// ArenaHeap with the given capacities and waits for each task to finish.
// Requests without a target get none; decode is a no-op.
func Plan(ctx context.Context, reqs []Request, psramBytes, internalBytes int, log zerolog.Logger) (*Report, error) {
	heap := NewArenaHeap(psramBytes, internalBytes)
	loader := NewLoader(heap, nopDecoder{}, log, WithSettleDelay(0))

	report := &Report{Entries: make([]PlanEntry, 0, len(reqs))}
	for _, req := range reqs {
		entry := PlanEntry{
			WidgetID: req.WidgetID,
			Width:    req.Width,
			Height:   req.Height,
			Embedded: req.Source.Embedded(),
		}

		beforePSRAM := heap.Usage(RegionSPIRAM).Used
		beforeInternal := heap.Usage(RegionInternal).Used

		res, err := loader.Load(req)
		if err != nil {
			entry.Err = err
		} else if err := res.Task.Wait(ctx); err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("plan interrupted at %s: %w", req.WidgetID, err)
		}

		entry.PSRAM = heap.Usage(RegionSPIRAM).Used - beforePSRAM
		entry.Internal = heap.Usage(RegionInternal).Used - beforeInternal
		report.Entries = append(report.Entries, entry)
	}

	report.PSRAM = heap.Usage(RegionSPIRAM)
	report.Internal = heap.Usage(RegionInternal)
	return report, nil
}

// Write prints the report as an aligned table.
func (r *Report) Write(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WIDGET\tSIZE\tSOURCE\tPSRAM\tINTERNAL\tSTATUS")
	for _, e := range r.Entries {
		source := "path"
		if e.Embedded {
			source = "embedded"
		}
		status := "ok"
		if e.Err != nil {
			status = "FAILED: " + e.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%dx%d\t%s\t%s\t%s\t%s\n",
			e.WidgetID, e.Width, e.Height, source,
			humanize.IBytes(uint64(e.PSRAM)), humanize.IBytes(uint64(e.Internal)), status)
	}
	fmt.Fprintf(tw, "\nPSRAM\t%s of %s (peak %s)\n",
		humanize.IBytes(uint64(r.PSRAM.Used)), humanize.IBytes(uint64(r.PSRAM.Capacity)), humanize.IBytes(uint64(r.PSRAM.Peak)))
	fmt.Fprintf(tw, "INTERNAL\t%s of %s (peak %s)\n",
		humanize.IBytes(uint64(r.Internal.Used)), humanize.IBytes(uint64(r.Internal.Capacity)), humanize.IBytes(uint64(r.Internal.Peak)))
	return tw.Flush()
}
