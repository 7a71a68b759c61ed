// Package transport builds the HTTP client used for asset downloads.
package transport

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/httputil"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultLogPath is where request and response headers are appended.
const DefaultLogPath = "http.log"

// LoggingTransport wraps an http.RoundTripper and appends request and response
// headers to a log file. Bodies are never logged; they are archives.
type LoggingTransport struct {
	Transport http.RoundTripper
	logFile   *os.File
	mu        sync.Mutex
	writer    *bufio.Writer
}

// NewLoggingTransport opens logFilePath for appending.
func NewLoggingTransport(transport http.RoundTripper, logFilePath string) (*LoggingTransport, error) {
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open HTTP log file %s: %w", logFilePath, err)
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

// RoundTrip executes a single HTTP transaction, logging its headers.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	startTime := time.Now()

	reqDump, err := httputil.DumpRequestOut(req, false)
	if err != nil {
		log.WithError(err).Error("Failed to dump request for logging")
	} else {
		t.writeLog(fmt.Sprintf("--- Request (%s) ---\n%s", startTime.Format(time.RFC3339), reqDump))
	}

	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(startTime)

	if err != nil {
		t.writeLog(fmt.Sprintf("--- Response Error (%s, Duration: %v) ---\n%s", time.Now().Format(time.RFC3339), duration, err))
		return resp, err
	}

	respDump, dumpErr := httputil.DumpResponse(resp, false)
	if dumpErr != nil {
		log.WithError(dumpErr).Error("Failed to dump response headers for logging")
		t.writeLog(fmt.Sprintf("--- Response (%s, Duration: %v) ---\nStatus: %s", time.Now().Format(time.RFC3339), duration, resp.Status))
	} else {
		t.writeLog(fmt.Sprintf("--- Response Headers (%s, Duration: %v) ---\n%s", time.Now().Format(time.RFC3339), duration, respDump))
	}
	return resp, nil
}

func (t *LoggingTransport) writeLog(entry string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.writer.WriteString(entry + "\n\n"); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing to HTTP log file: %v\n", err)
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
		return fmt.Errorf("failed to flush HTTP log buffer: %w", errFlush)
	}
	return errClose
}

// NewClient returns the download client. When logPath is non-empty the
// transport logs to it; the returned closer releases the log file.
func NewClient(timeout time.Duration, logPath string) (*http.Client, func() error, error) {
	client := &http.Client{Timeout: timeout}
	noop := func() error { return nil }
	if logPath == "" {
		return client, noop, nil
	}
	lt, err := NewLoggingTransport(http.DefaultTransport, logPath)
	if err != nil {
		return nil, noop, err
	}
	client.Transport = lt
	return client, lt.Close, nil
}
