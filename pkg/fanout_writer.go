package pkg

import (
	"io"

	"go.uber.org/multierr"
)

// FanOutWriter copies every write to all of its sinks. A failing sink does not stop the
// others; the write reports len(p) as long as one sink took it whole.
type FanOutWriter struct {
	sinks []io.Writer
}

func NewFanOutWriter(sinks ...io.Writer) *FanOutWriter {
	return &FanOutWriter{
		sinks: sinks,
	}
}

func (w *FanOutWriter) Write(p []byte) (int, error) {
	var (
		errs      error
		delivered bool
	)
	for _, sink := range w.sinks {
		n, err := sink.Write(p)
		if err == nil && n < len(p) {
			err = io.ErrShortWrite
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		delivered = true
	}
	if !delivered && len(w.sinks) > 0 {
		return 0, errs
	}
	return len(p), errs
}
