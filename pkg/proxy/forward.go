package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/raikyou/uniapi/pkg/config"
	"github.com/raikyou/uniapi/pkg/providers"
)

// forwardSuccess streams or buffers a 2xx/3xx upstream response back to the
// caller, per spec.md §4.F step 4 and the "Response streaming" note: headers
// are written as soon as the head arrives, and a streamed body is copied
// incrementally without ever being held in memory.
func (e *Engine) forwardSuccess(w http.ResponseWriter, resp *providers.Response, streaming bool, start time.Time, requestID, path, requestedModel, effectiveModel, provider string) {
	defer resp.Body.Close()

	header := w.Header()
	scrubResponseHeader(header, resp.Header)
	w.WriteHeader(resp.StatusCode)

	if streaming {
		flusher, _ := w.(http.Flusher)
		firstByteMs := copyStreaming(w, resp.Body, flusher, start)
		e.Recorder.Record(Outcome{
			RequestID:          requestID,
			Path:               path,
			RequestedModel:     requestedModel,
			EffectiveModel:     effectiveModel,
			Provider:           provider,
			Streaming:          true,
			StatusCode:         resp.StatusCode,
			TotalLatencyMs:     time.Since(start).Milliseconds(),
			FirstByteLatencyMs: firstByteMs,
		})
		return
	}

	buf, _ := io.ReadAll(resp.Body)
	_, _ = w.Write(buf)
	e.Recorder.Record(Outcome{
		RequestID:      requestID,
		Path:           path,
		RequestedModel: requestedModel,
		EffectiveModel: effectiveModel,
		Provider:       provider,
		Streaming:      false,
		StatusCode:     resp.StatusCode,
		TotalLatencyMs: time.Since(start).Milliseconds(),
		ResponseBody:   buf,
	})
}

// forwardClientFault forwards a 4xx (non-429, or 429 classified as client
// fault) response verbatim: no failover, no cooldown.
func (e *Engine) forwardClientFault(w http.ResponseWriter, resp *providers.Response, start time.Time, requestID, path, requestedModel, effectiveModel, provider string) {
	defer resp.Body.Close()

	header := w.Header()
	scrubResponseHeader(header, resp.Header)
	w.WriteHeader(resp.StatusCode)

	buf, _ := io.ReadAll(resp.Body)
	_, _ = w.Write(buf)

	e.Recorder.Record(Outcome{
		RequestID:      requestID,
		Path:           path,
		RequestedModel: requestedModel,
		EffectiveModel: effectiveModel,
		Provider:       provider,
		StatusCode:     resp.StatusCode,
		TotalLatencyMs: time.Since(start).Milliseconds(),
		ResponseBody:   buf,
	})
}

// copyStreaming copies src to dst in chunks, flushing after every write so
// the caller sees data as it arrives, and returns the wall time in
// milliseconds from start to the first non-empty chunk.
func copyStreaming(dst io.Writer, src io.Reader, flusher http.Flusher, start time.Time) int64 {
	var firstByteMs int64 = -1
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if firstByteMs < 0 {
				firstByteMs = time.Since(start).Milliseconds()
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return firstByteMs
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return firstByteMs
			}
			break
		}
	}
	if firstByteMs < 0 {
		firstByteMs = 0
	}
	return firstByteMs
}

// serveCatalog answers the catalog endpoint directly without forwarding.
func (e *Engine) serveCatalog(w http.ResponseWriter, cfg *config.Config) {
	catalog := e.Pool.Catalog(cfg)
	data := make([]map[string]any, 0, len(catalog))
	for _, id := range catalog {
		data = append(data, map[string]any{"id": id, "name": id, "object": "model"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
}

// classifyTransportError turns a Send error into a short human-readable
// reason for the candidate-error summary and request log, distinguishing a
// context deadline from other transport failures.
func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return err.Error()
}

// httpStatusReason formats an upstream-fault status code as a reason string.
func httpStatusReason(status int) string {
	return "upstream status " + strconv.Itoa(status)
}
