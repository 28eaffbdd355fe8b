package api

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go-wallhaven-browser/internal/helpers"

	log "github.com/sirupsen/logrus"
)

var (
	activeLoggingTransports []*LoggingTransport
	transportsMu            sync.Mutex
)

// LoggingTransport wraps an http.RoundTripper and appends every API exchange
// to a log file. The API key header is masked; image bodies are never logged.
type LoggingTransport struct {
	Transport http.RoundTripper
	logFile   *os.File
	writer    *bufio.Writer
	mu        sync.Mutex
}

// NewLoggingTransport opens logFilePath for appending and wraps transport.
func NewLoggingTransport(transport http.RoundTripper, logFilePath string) (*LoggingTransport, error) {
	safeLogFilePath := filepath.Clean(logFilePath)
	if !filepath.IsAbs(safeLogFilePath) {
		// Relative paths stay below the working directory.
		safeLogFilePath = helpers.SanitizePath(safeLogFilePath)
	}
	// #nosec G304
	f, err := os.OpenFile(safeLogFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open API log file %s: %w", safeLogFilePath, err)
	}
	if transport == nil {
		transport = http.DefaultTransport
	}

	lt := &LoggingTransport{
		Transport: transport,
		logFile:   f,
		writer:    bufio.NewWriter(f),
	}

	transportsMu.Lock()
	activeLoggingTransports = append(activeLoggingTransports, lt)
	transportsMu.Unlock()
	log.Debugf("Registered LoggingTransport for %s", safeLogFilePath)
	return lt, nil
}

// RoundTrip executes a single HTTP transaction, logging details.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	startTime := time.Now()

	logged := req.Clone(req.Context())
	if key := logged.Header.Get(apiKeyHeader); key != "" {
		logged.Header.Set(apiKeyHeader, helpers.MaskSecret(key))
	}
	if reqDump, err := httputil.DumpRequestOut(logged, false); err != nil {
		log.WithError(err).Error("[LogTransport] Failed to dump API request for logging")
	} else {
		t.mu.Lock()
		t.writeLog(fmt.Sprintf("--- Request (%s) ---\n%s", startTime.Format(time.RFC3339), reqDump))
		t.mu.Unlock()
	}

	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(startTime)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		t.writeLog(fmt.Sprintf("--- Response Error (Duration: %v) ---\n%s", duration, err.Error()))
	} else {
		contentType := resp.Header.Get("Content-Type")
		headers, _ := httputil.DumpResponse(resp, false)
		if strings.HasPrefix(contentType, "application/json") {
			bodyBytes, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			if readErr != nil {
				log.WithError(readErr).Error("[LogTransport] Failed to read response body for logging")
				t.writeLog(fmt.Sprintf("--- Response (Duration: %v) ---\n%s\n(Body read failed)", duration, headers))
			} else {
				t.writeLog(fmt.Sprintf("--- Response (Duration: %v) ---\n%s\n%s", duration, headers, bodyBytes))
			}
		} else {
			t.writeLog(fmt.Sprintf("--- Response (Duration: %v, Type: %s) ---\n%s\n(Body not logged)", duration, contentType, headers))
		}
	}

	if errFlush := t.writer.Flush(); errFlush != nil {
		log.WithError(errFlush).Error("[LogTransport] Failed to flush log writer")
	}
	return resp, err
}

func (t *LoggingTransport) writeLog(s string) {
	if _, err := t.writer.WriteString(s + "\n\n"); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing to API log file: %v\n", err)
	}
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

// CloseAllLoggingTransports closes every transport created by NewLoggingTransport.
func CloseAllLoggingTransports() {
	transportsMu.Lock()
	defer transportsMu.Unlock()

	for _, t := range activeLoggingTransports {
		if err := t.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing logging transport for %s: %v\n", t.logFile.Name(), err)
		}
	}
	activeLoggingTransports = nil
}
