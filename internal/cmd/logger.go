package cmd

import (
	"log/slog"
	"os"

	"github.com/golang-cz/devslog"
	"github.com/mattn/go-isatty"
)

// initLogger installs the default logger: devslog on a terminal, JSON
// otherwise, both honoring the configured level. Level names are
// validated by the log-level flag before they get here.
func initLogger(level string) error {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return err
	}

	w := os.Stdout
	opts := &slog.HandlerOptions{
		Level: parsed,
	}

	var handler slog.Handler
	if isatty.IsTerminal(w.Fd()) {
		handler = devslog.NewHandler(w, &devslog.Options{
			HandlerOptions: opts,
		})
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))

	return nil
}
