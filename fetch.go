package pcview

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	fetchBufferSize    = 32 * 1024
	fetchReportEvery   = 100 * time.Millisecond
	fetchStatusUnknown = -1
)

// fetchProgress receives accumulated and total byte counts while a download
// is running. total is fetchStatusUnknown when the server sends no
// Content-Length.
type fetchProgress func(downloaded, total int64)

// fetch streams the response body chunk by chunk so a load can be cancelled
// between chunks and progress reported while megabytes are still in flight.
func fetch(ctx context.Context, client *http.Client, url string, progress fetchProgress) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("bad status: %s", resp.Status)}
	}

	total := resp.ContentLength
	if total <= 0 {
		total = fetchStatusUnknown
	}

	var body bytes.Buffer
	if total > 0 {
		body.Grow(int(total))
	}
	buf := make([]byte, fetchBufferSize)
	lastReport := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil, ErrCancelled
		default:
		}

		n, err := resp.Body.Read(buf)
		if n > 0 {
			body.Write(buf[:n])
			if progress != nil && time.Since(lastReport) >= fetchReportEvery {
				progress(int64(body.Len()), total)
				lastReport = time.Now()
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrCancelled
			}
			return nil, &NetworkError{URL: url, Err: fmt.Errorf("read body: %w", err)}
		}
	}
	if progress != nil {
		progress(int64(body.Len()), total)
	}
	return body.Bytes(), nil
}

// formatBytes renders a byte count for status messages on servers that do
// not announce a total length.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
