package pcview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mapware/pcview/cloud"
	"github.com/mapware/pcview/cloud/colormap"
	"github.com/seqsense/pcgol/mat"
)

// gridPCD synthesizes an ascii PCD with heights (source frame Z) 0..n-1.
func gridPCD(n int) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\nPOINTS %d\nDATA ascii\n", n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%d %d %d\n", i, -i, i)
	}
	return []byte(sb.String())
}

func TestSessionLoadBytes(t *testing.T) {
	var statuses []string
	var counts []int
	s := NewSession(Callbacks{
		OnPointCountChanged: func(n int) { counts = append(counts, n) },
		OnStatusChanged:     func(text string) { statuses = append(statuses, text) },
	})

	if err := s.LoadBytes(context.Background(), "grid.pcd", gridPCD(10)); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateReady {
		t.Fatalf("Expected StateReady, got: %v", s.State())
	}
	b := s.PointBuffer()
	if b == nil || b.Count != 10 {
		t.Fatalf("Expected a 10 point buffer, got: %+v", b)
	}
	if len(counts) == 0 || counts[len(counts)-1] != 10 {
		t.Errorf("Expected point count callback with 10, got: %v", counts)
	}
	if len(statuses) == 0 {
		t.Error("Expected status updates")
	}
}

func TestSessionFailureKeepsBuffer(t *testing.T) {
	s := NewSession(Callbacks{})
	if err := s.LoadBytes(context.Background(), "grid.pcd", gridPCD(5)); err != nil {
		t.Fatal(err)
	}
	prev := s.PointBuffer()

	err := s.LoadBytes(context.Background(), "junk.xyz", []byte("garbage"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Expected ErrUnsupportedFormat, got: %v", err)
	}
	if s.State() != StateFailed {
		t.Errorf("Expected StateFailed, got: %v", s.State())
	}
	if s.Failure() == "" {
		t.Error("Expected a failure message")
	}
	if s.PointBuffer() != prev {
		t.Error("A failed load must not disturb the previous buffer")
	}

	// A malformed payload of a known format fails the same way.
	err = s.LoadBytes(context.Background(), "bad.las", []byte("LASFshort"))
	if err == nil {
		t.Fatal("Truncated LAS must fail")
	}
	if s.PointBuffer() != prev {
		t.Error("A failed load must not disturb the previous buffer")
	}
}

func TestSessionLoadBytesHugeDeclaredCount(t *testing.T) {
	raw := []byte("FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n" +
		"POINTS 6148914691236517205\nDATA ascii\n1 2 3\n")
	s := NewSession(Callbacks{})
	if err := s.LoadBytes(context.Background(), "huge.pcd", raw); err != nil {
		t.Fatal(err)
	}
	if got := s.PointBuffer().Count; got != 1 {
		t.Errorf("Expected 1 point, got: %d", got)
	}
}

func TestSessionCancelAfterReady(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewSession(Callbacks{})
	if err := s.LoadBytes(ctx, "grid.pcd", gridPCD(3)); err != nil {
		t.Fatal(err)
	}
	// The finished load released its cancel func, so Cancel is a no-op.
	s.Cancel()
	if s.State() != StateReady {
		t.Errorf("Expected StateReady, got: %v", s.State())
	}
	if s.PointBuffer() == nil {
		t.Error("Expected the buffer to survive")
	}
}

func TestSessionFilterClamping(t *testing.T) {
	s := NewSession(Callbacks{})
	f := s.Filter()

	f.SetHeightRange(-0.5, 1.5)
	if min, max := f.HeightRange(); min != 0 || max != 1 {
		t.Errorf("Expected clamped range [0, 1], got: [%f, %f]", min, max)
	}
	f.SetHeightRange(0.8, 0.3)
	if min, max := f.HeightRange(); min != 0.3 || max != 0.3 {
		t.Errorf("Expected min clamped to max, got: [%f, %f]", min, max)
	}
	f.SetStride(0)
	if f.Stride() != 1 {
		t.Errorf("Expected stride clamped to 1, got: %d", f.Stride())
	}
}

func TestSessionVisiblePoints(t *testing.T) {
	s := NewSession(Callbacks{})
	if err := s.LoadBytes(context.Background(), "grid.pcd", gridPCD(10)); err != nil {
		t.Fatal(err)
	}

	// Keep the upper half: exactly the 5 highest points, order preserved.
	s.Filter().SetHeightRange(0.5, 1)
	out, err := s.VisiblePoints()
	if err != nil {
		t.Fatal(err)
	}
	if out.Count != 5 {
		t.Fatalf("Expected 5 points, got: %d", out.Count)
	}
	for i := 0; i < 5; i++ {
		if h := out.DisplayPositions[3*i+1]; h != float32(i+5) {
			t.Errorf("Expected height %d at %d, got: %f", i+5, i, h)
		}
	}

	// Downsampling applies after the filter.
	s.Filter().SetStride(2)
	out, err = s.VisiblePoints()
	if err != nil {
		t.Fatal(err)
	}
	if out.Count != 3 {
		t.Fatalf("Expected 3 points, got: %d", out.Count)
	}

	// Recoloring does not change the count and keeps the source buffer.
	s.Filter().SetColorMode(colormap.ModeHeight)
	out2, err := s.VisiblePoints()
	if err != nil {
		t.Fatal(err)
	}
	if out2.Count != out.Count {
		t.Fatalf("Expected %d points, got: %d", out.Count, out2.Count)
	}
	if c := s.PointBuffer().ColorAt(0); c != (mat.Vec3{cloud.DefaultGrayR, cloud.DefaultGrayG, cloud.DefaultGrayB}) {
		t.Errorf("Source buffer colors must stay untouched, got: %v", c)
	}
}

func TestSessionVisiblePointsNoCloud(t *testing.T) {
	s := NewSession(Callbacks{})
	if _, err := s.VisiblePoints(); err == nil {
		t.Error("VisiblePoints without a loaded cloud must fail")
	}
}

func TestSessionLoadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gridPCD(10))
	}))
	defer srv.Close()

	s := NewSession(Callbacks{})
	if err := s.LoadURL(context.Background(), srv.URL+"/grid.pcd"); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateReady {
		t.Fatalf("Expected StateReady, got: %v", s.State())
	}
	b := s.PointBuffer()
	if b.Count != 10 {
		t.Errorf("Expected 10 points, got: %d", b.Count)
	}
	if b.SourceName != "grid.pcd" {
		t.Errorf("Expected source name grid.pcd, got: %q", b.SourceName)
	}
}

func TestSessionLoadURLNoContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked response: the client sees no Content-Length.
		fl := w.(http.Flusher)
		for _, chunk := range [][]byte{gridPCD(10)[:20], gridPCD(10)[20:]} {
			w.Write(chunk)
			fl.Flush()
		}
	}))
	defer srv.Close()

	s := NewSession(Callbacks{})
	if err := s.LoadURL(context.Background(), srv.URL+"/grid.pcd"); err != nil {
		t.Fatal(err)
	}
	if got := s.PointBuffer().Count; got != 10 {
		t.Errorf("Expected 10 points, got: %d", got)
	}
}

func TestSessionLoadURLBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := NewSession(Callbacks{})
	err := s.LoadURL(context.Background(), srv.URL+"/missing.pcd")
	if err == nil {
		t.Fatal("Expected an error for a 404 response")
	}
	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("Expected NetworkError, got: %v", err)
	}
	if s.State() != StateFailed {
		t.Errorf("Expected StateFailed, got: %v", s.State())
	}
}

func TestSessionCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("VERSION 0.7\n"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	s := NewSession(Callbacks{})
	done := make(chan error, 1)
	go func() {
		done <- s.LoadURL(context.Background(), srv.URL+"/slow.pcd")
	}()

	// Wait for the download to be in flight, then cancel.
	for s.State() != StateDownloading {
		time.Sleep(time.Millisecond)
	}
	s.Cancel()

	if err := <-done; !errors.Is(err, ErrCancelled) {
		t.Fatalf("Expected ErrCancelled, got: %v", err)
	}
	if s.State() != StateCancelled {
		t.Errorf("Expected StateCancelled, got: %v", s.State())
	}
	if s.Failure() != "" {
		t.Errorf("Cancellation must not record a failure, got: %q", s.Failure())
	}
}
