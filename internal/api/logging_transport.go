package api

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultLogFile is where API traffic is logged when LogApiRequests is set.
const DefaultLogFile = "photos-api.log"

// LoggingTransport wraps an http.RoundTripper and appends every request and
// response to a log file. Bearer tokens are redacted and only JSON bodies are
// written out; media bytes are not.
type LoggingTransport struct {
	Transport http.RoundTripper
	logFile   *os.File
	mu        sync.Mutex
	writer    *bufio.Writer
}

func NewLoggingTransport(transport http.RoundTripper, logFilePath string) (*LoggingTransport, error) {
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open API log file %s: %w", logFilePath, err)
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &LoggingTransport{
		Transport: transport,
		logFile:   f,
		writer:    bufio.NewWriter(f),
	}, nil
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	var entry strings.Builder
	fmt.Fprintf(&entry, "--- Request (%s) ---\n", start.Format(time.RFC3339))
	if dump, err := httputil.DumpRequestOut(redacted(req), true); err != nil {
		log.WithError(err).Debug("Failed to dump API request for logging")
		fmt.Fprintf(&entry, "%s %s\n", req.Method, req.URL)
	} else {
		entry.Write(dump)
		entry.WriteString("\n")
	}

	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(start).Round(time.Millisecond)

	if err != nil {
		fmt.Fprintf(&entry, "--- Response Error (%v) ---\n%s\n", duration, err)
		t.writeLog(entry.String())
		return resp, err
	}

	contentType := resp.Header.Get("Content-Type")
	header, dumpErr := httputil.DumpResponse(resp, false)
	if dumpErr != nil {
		header = []byte("Status: " + resp.Status + "\n")
	}
	fmt.Fprintf(&entry, "--- Response (%v) ---\n%s", duration, header)

	if strings.HasPrefix(contentType, "application/json") {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		// Hand the caller a readable body even if reading it here failed part way.
		resp.Body = io.NopCloser(bytes.NewReader(body))
		if readErr != nil {
			fmt.Fprintf(&entry, "(Body read failed: %v)\n", readErr)
		} else {
			fmt.Fprintf(&entry, "%s\n", body)
		}
	} else {
		fmt.Fprintf(&entry, "(Body of type %q not logged)\n", contentType)
	}

	t.writeLog(entry.String())
	return resp, nil
}

// redacted returns a shallow copy of req with the Authorization header masked.
func redacted(req *http.Request) *http.Request {
	if req.Header.Get("Authorization") == "" {
		return req
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer [REDACTED]")
	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			clone.Body = body
		}
	} else {
		clone.Body = nil
		clone.ContentLength = 0
	}
	return clone
}

func (t *LoggingTransport) writeLog(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.writer.WriteString(s + "\n"); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing to API log file: %v\n", err)
		return
	}
	_ = t.writer.Flush()
}

// Close flushes and closes the log file.
func (t *LoggingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	errFlush := t.writer.Flush()
	errClose := t.logFile.Close()
	if errFlush != nil {
		return fmt.Errorf("failed to flush API log buffer: %w", errFlush)
	}
	return errClose
}
