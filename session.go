// Package pcview implements the ingestion and processing core of a point
// cloud viewer: format decoding, streaming download, background parsing, the
// filter/downsample/recolor pipeline and lossless re-export.
package pcview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"sync"

	"github.com/mapware/pcview/cloud"
	"github.com/mapware/pcview/cloud/colormap"
	"github.com/mapware/pcview/cloud/filter"
)

// workerSizeThreshold is the payload size above which PCD and LAS decoding is
// routed to the background parse worker. PLY always decodes inline.
const workerSizeThreshold = 8 << 20

type LoadState int

const (
	StateIdle LoadState = iota
	StateDownloading
	StateParsing
	StateReady
	StateCancelled
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateDownloading:
		return "downloading"
	case StateParsing:
		return "parsing"
	case StateReady:
		return "ready"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "idle"
}

// Callbacks are the status hooks exposed to the rendering collaborator. Nil
// members are ignored. They are invoked from the goroutine running the load.
type Callbacks struct {
	OnPointCountChanged func(count int)
	OnStatusChanged     func(text string)
}

// FilterState holds the display filter parameters. It is independent of the
// loaded buffer and survives buffer replacement; all values are clamped on
// assignment.
type FilterState struct {
	heightMin float32
	heightMax float32
	mode      colormap.Mode
	stride    int
}

func newFilterState() FilterState {
	return FilterState{heightMin: 0, heightMax: 1, stride: 1}
}

// SetHeightRange sets the normalized height band. Values are clamped to
// [0, 1] and min is clamped to max.
func (f *FilterState) SetHeightRange(min, max float32) {
	f.heightMax = clamp01(max)
	f.heightMin = clamp01(min)
	if f.heightMin > f.heightMax {
		f.heightMin = f.heightMax
	}
}

func (f *FilterState) HeightRange() (min, max float32) {
	return f.heightMin, f.heightMax
}

func (f *FilterState) SetColorMode(m colormap.Mode) {
	f.mode = m
}

func (f *FilterState) ColorMode() colormap.Mode {
	return f.mode
}

// SetStride sets the downsample stride. Values below 1 are clamped to 1.
func (f *FilterState) SetStride(n int) {
	if n < 1 {
		n = 1
	}
	f.stride = n
}

func (f *FilterState) Stride() int {
	return f.stride
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Session owns one point cloud and its load lifecycle. At most one load is in
// flight; starting a new one cancels the previous. A failed or cancelled load
// never disturbs a previously loaded buffer.
//
// Load methods block until the session reaches a terminal state; run them on
// their own goroutine to keep an interactive caller responsive. The accessor
// methods are safe to call concurrently with a running load.
type Session struct {
	cb     Callbacks
	client *http.Client

	mu      sync.Mutex
	gen     int
	cancel  context.CancelFunc
	state   LoadState
	failure string
	buffer  *cloud.PointBuffer
	filter  FilterState
}

func NewSession(cb Callbacks) *Session {
	return &Session{
		cb:     cb,
		client: &http.Client{},
		filter: newFilterState(),
	}
}

// SetHTTPClient replaces the client used for URL loads.
func (s *Session) SetHTTPClient(c *http.Client) {
	s.client = c
}

func (s *Session) State() LoadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Failure returns the human-readable error of the last failed load.
func (s *Session) Failure() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// PointBuffer returns the active decoded buffer, or nil before the first
// successful load. The buffer is read-only.
func (s *Session) PointBuffer() *cloud.PointBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer
}

// Filter returns the mutable filter parameters of the session.
func (s *Session) Filter() *FilterState {
	return &s.filter
}

// Cancel aborts the in-flight load, if any. Partially decoded data is
// discarded; there is no resume.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// LoadURL downloads and decodes a point cloud. The download is streamed so it
// can be cancelled between chunks, with percentage progress when the server
// announces a length and raw byte counts otherwise.
func (s *Session) LoadURL(ctx context.Context, rawURL string) error {
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		name = path.Base(u.Path)
	}
	ctx, gen := s.begin(ctx, StateDownloading, "downloading "+name)

	data, err := fetch(ctx, s.client, rawURL, func(downloaded, total int64) {
		if total > 0 {
			s.status("downloading %s: %d%%", name, downloaded*100/total)
		} else {
			s.status("downloading %s: %s", name, formatBytes(downloaded))
		}
	})
	if err != nil {
		return s.fail(gen, err)
	}
	return s.decodePayload(ctx, gen, name, data)
}

// LoadFile decodes a point cloud from a local file. The extension is only a
// format hint; content decides the decoder.
func (s *Session) LoadFile(ctx context.Context, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		_, gen := s.begin(ctx, StateParsing, "")
		return s.fail(gen, err)
	}
	return s.LoadBytes(ctx, path.Base(filename), data)
}

// LoadBytes decodes an already acquired payload.
func (s *Session) LoadBytes(ctx context.Context, name string, data []byte) error {
	ctx, gen := s.begin(ctx, StateParsing, "")
	return s.decodePayload(ctx, gen, name, data)
}

// begin cancels any in-flight load and opens a new load generation.
func (s *Session) begin(ctx context.Context, state LoadState, statusText string) (context.Context, int) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.state = state
	s.failure = ""
	s.mu.Unlock()

	if statusText != "" {
		s.status("%s", statusText)
	}
	return ctx, gen
}

func (s *Session) decodePayload(ctx context.Context, gen int, name string, data []byte) error {
	format := DetectFormat(name, data)
	if format == cloud.FormatUnknown {
		return s.fail(gen, ErrUnsupportedFormat)
	}

	s.setState(gen, StateParsing)
	s.status("parsing %s", name)

	var b *cloud.PointBuffer
	var err error
	if format == cloud.FormatPLY || len(data) <= workerSizeThreshold {
		b, err = Decode(ctx, format, name, data, func(done, total int) {
			if total > 0 {
				s.status("parsing %s: %d%%", name, done*100/total)
			}
		})
	} else {
		b, err = s.parseInWorker(ctx, format, name, data)
	}
	if err != nil {
		return s.fail(gen, err)
	}
	return s.complete(gen, b)
}

func (s *Session) parseInWorker(ctx context.Context, format cloud.Format, name string, data []byte) (*cloud.PointBuffer, error) {
	kind := parsePCD
	if format == cloud.FormatLAS {
		kind = parseLAS
	}
	var b *cloud.PointBuffer
	var err error
	for ev := range runParser(ctx, parseRequest{kind: kind, name: name, payload: data}) {
		switch ev.kind {
		case parseProgress:
			s.status("%s", ev.message)
		case parseComplete:
			b = ev.buffer
		case parseError:
			err = ev.err
		}
	}
	if err != nil {
		return nil, err
	}
	if b == nil {
		// Terminal event was suppressed by cancellation.
		return nil, ErrCancelled
	}
	return b, nil
}

func (s *Session) complete(gen int, b *cloud.PointBuffer) error {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return ErrCancelled
	}
	s.state = StateReady
	s.buffer = b
	if s.cancel != nil {
		// Release the context registration of the finished load.
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.status("loaded %s: %d points", b.SourceName, b.Count)
	if s.cb.OnPointCountChanged != nil {
		s.cb.OnPointCountChanged(b.Count)
	}
	return nil
}

func (s *Session) fail(gen int, err error) error {
	cancelled := errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return ErrCancelled
	}
	if cancelled {
		s.state = StateCancelled
		s.failure = ""
	} else {
		s.state = StateFailed
		s.failure = err.Error()
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	if cancelled {
		s.status("cancelled")
		return ErrCancelled
	}
	s.status("%s", err.Error())
	return err
}

func (s *Session) setState(gen int, state LoadState) {
	s.mu.Lock()
	if gen == s.gen {
		s.state = state
	}
	s.mu.Unlock()
}

func (s *Session) status(format string, a ...interface{}) {
	if s.cb.OnStatusChanged != nil {
		s.cb.OnStatusChanged(fmt.Sprintf(format, a...))
	}
}

var errNoPointCloud = errors.New("no point cloud is loaded")

// VisiblePoints applies the filter pipeline to the active buffer: height band
// filter, then stride downsample, then colorize. The result is a new buffer;
// the active buffer is never modified, so the pipeline can be re-run on every
// parameter change.
func (s *Session) VisiblePoints() (*cloud.PointBuffer, error) {
	b := s.PointBuffer()
	if b == nil {
		return nil, errNoPointCloud
	}
	f := &s.filter

	out, err := filter.HeightBand{Min: f.heightMin, Max: f.heightMax}.Filter(b)
	if err != nil {
		return nil, err
	}
	out, err = filter.Stride{N: f.stride}.Filter(out)
	if err != nil {
		return nil, err
	}
	out = colormap.Apply(out, f.mode)

	if s.cb.OnPointCountChanged != nil {
		s.cb.OnPointCountChanged(out.Count)
	}
	return out, nil
}
