package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"mclaunch/internal/event"
)

// downloadRenderer prints download events as status lines on w.
type downloadRenderer struct {
	w         io.Writer
	lastPrint time.Time
}

func (r *downloadRenderer) sink(e event.Event) {
	switch e.Kind {
	case event.Progress:
		slog.Info(e.Message)
	case event.EstimatedTime:
		if time.Since(r.lastPrint) < time.Second {
			return
		}
		r.lastPrint = time.Now()
		fmt.Fprintf(r.w, "%s%% done, %s remaining\n",
			humanize.FtoaWithDigits(e.Percent, 1), e.Duration.Round(time.Second))
	case event.CategoryTick:
		slog.Debug("Category progress", "category", e.Category, "percent", e.Percent)
	case event.Error:
		if e.Category != "" {
			slog.Warn("File failed", "category", e.Category, "error", e.Message)
			return
		}
		fmt.Fprintf(r.w, "download failed: %s\n", e.Message)
	case event.Done:
		fmt.Fprintf(r.w, "installed %s\n", e.Message)
	}
}

// gameRenderer forwards the game's output lines and the supervisor's notices.
type gameRenderer struct {
	stdout io.Writer
	stderr io.Writer
}

func (r *gameRenderer) sink(e event.Event) {
	switch e.Kind {
	case event.Data:
		fmt.Fprintln(r.stdout, e.Message)
	case event.Error:
		fmt.Fprintln(r.stderr, e.Message)
	case event.Debug:
		slog.Debug(e.Message)
	case event.Close:
		slog.Info("Game closed", "code", e.Code)
	}
}
