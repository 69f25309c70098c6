// Command engagement-report runs the segment pipeline over an event export
// and writes the watch-rate, summary and workbook reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"edupulse/internal/analytics"
	"edupulse/internal/dataprocessing"
	"edupulse/internal/exporter"
)

func main() {
	eventsFile := flag.String("events", "data/watch_events.csv", "watch-event export (csv or xlsx)")
	chaptersFile := flag.String("chapters", "", "course-structure file (csv or xlsx, optional)")
	outputDir := flag.String("out", "data/reports", "output directory for reports")
	topSelection := flag.Int("top", 5, "number of segments to flag high and low")
	segmentSeconds := flag.Int("segment-seconds", analytics.DefaultSegmentSeconds, "segment duration in seconds")
	timeout := flag.Duration("timeout", analytics.DefaultCalculationTimeout, "calculation timeout")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(*eventsFile, *chaptersFile, *outputDir, *topSelection, *segmentSeconds, *timeout, logger); err != nil {
		logger.Error("report generation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(eventsFile, chaptersFile, outputDir string, topSelection, segmentSeconds int, timeout time.Duration, logger *slog.Logger) error {
	ctx := context.Background()
	start := time.Now()

	loader := dataprocessing.NewLoader(segmentSeconds, logger)

	events, err := loader.LoadEvents(eventsFile)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return fmt.Errorf("no usable events in %s", eventsFile)
	}

	pipeline := analytics.NewPipeline(analytics.Config{
		SegmentSeconds:     segmentSeconds,
		TopSelection:       topSelection,
		CalculationTimeout: timeout,
	}, logger)

	rows, err := pipeline.AggregatedTable(ctx, events)
	if err != nil {
		return fmt.Errorf("aggregate events: %w", err)
	}
	summary := analytics.SummaryTable(rows, events, segmentSeconds)

	csvWriter := exporter.NewCSVWriter(outputDir, logger)
	excelWriter := exporter.NewExcelWriter(outputDir, logger)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return csvWriter.WriteWatchRateReport("watch_rates.csv", rows)
	})
	g.Go(func() error {
		return csvWriter.WriteSummaryReport("summary.csv", summary)
	})
	g.Go(func() error {
		return excelWriter.WriteEngagementWorkbook("engagement.xlsx", summary, rows)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("write reports: %w", err)
	}

	if chaptersFile != "" {
		chapters, err := loader.LoadChapters(chaptersFile)
		if err != nil {
			return fmt.Errorf("load chapters: %w", err)
		}
		if markers, ok := analytics.ChapterMarkers(chapters); ok {
			logger.Info("chapter markers computed", slog.Any("markers", markers))
		} else {
			logger.Warn("chapter markers unavailable, need at least two chapters")
		}
	}

	logger.Info("reports written",
		slog.String("output_dir", outputDir),
		slog.Int("segment_rows", len(rows)),
		slog.Int("videos", len(summary)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}
