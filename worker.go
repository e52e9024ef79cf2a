package pcview

import (
	"context"
	"fmt"

	"github.com/mapware/pcview/cloud"
)

// The background parse worker decodes one PCD or LAS payload off the caller's
// goroutine. Communication is strict message passing: the worker owns the
// payload and the buffer under construction until it emits the single
// terminal event, at which point ownership of the buffer transfers to the
// receiver and the worker goroutine exits. It never touches the buffer again.

type parseKind int

const (
	parsePCD parseKind = iota
	parseLAS
)

type parseRequest struct {
	kind    parseKind
	name    string
	payload []byte
}

type parseEventKind int

const (
	parseProgress parseEventKind = iota
	parseComplete
	parseError
)

type parseEvent struct {
	kind    parseEventKind
	percent int
	message string

	// buffer is set on parseComplete, err on parseError.
	buffer *cloud.PointBuffer
	err    error
}

// runParser starts the worker goroutine for one request. The returned channel
// delivers zero or more progress events in increasing completion order,
// then exactly one terminal event, and is closed. Cancelling ctx makes the
// decoder abort at its next progress checkpoint; the event channel still
// terminates, with the context error.
func runParser(ctx context.Context, req parseRequest) <-chan parseEvent {
	events := make(chan parseEvent, 1)
	go func() {
		defer close(events)

		progress := func(done, total int) {
			percent := 0
			if total > 0 {
				percent = done * 100 / total
			}
			ev := parseEvent{
				kind:    parseProgress,
				percent: percent,
				message: fmt.Sprintf("parsing %s: %d%%", req.name, percent),
			}
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		var format cloud.Format
		switch req.kind {
		case parseLAS:
			format = cloud.FormatLAS
		default:
			format = cloud.FormatPCD
		}
		b, err := Decode(ctx, format, req.name, req.payload, progress)
		if err != nil {
			events <- parseEvent{kind: parseError, err: err}
			return
		}
		events <- parseEvent{kind: parseComplete, buffer: b}
	}()
	return events
}
