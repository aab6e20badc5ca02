package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// extractedBody is the result of bounded body extraction: the model name
// found (if any), the parsed JSON (if the body was JSON), and the buffered
// bytes so the same body can be replayed across multiple failover
// candidates and, if needed, rewritten for an alias.
type extractedBody struct {
	model    string
	isJSON   bool
	jsonBody map[string]any
	raw      []byte
}

// extractRequest reads up to maxBodyBytes of r.Body into memory, looking for
// a top-level "model" field, and falls back to a "model" query parameter.
// The buffered bytes are retained so the Proxy Engine can replay the same
// body against each failover candidate. A body larger than maxBodyBytes is
// truncated to the bound; this only affects requests whose body exceeds the
// configured limit, which callers are expected to size generously for their
// largest real payload.
func extractRequest(r *http.Request, maxBodyBytes int64) (*extractedBody, error) {
	result := &extractedBody{}

	if r.Body != nil && r.Body != http.NoBody {
		buf, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}
		result.raw = buf

		var parsed map[string]any
		if len(buf) > 0 && json.Unmarshal(buf, &parsed) == nil {
			result.isJSON = true
			result.jsonBody = parsed
			if m, ok := parsed["model"].(string); ok {
				result.model = m
			}
		}
	}

	if result.model == "" {
		result.model = r.URL.Query().Get("model")
	}

	return result, nil
}

// bodyReader returns a fresh reader over the buffered body, suitable for one
// outbound attempt. effectiveModel, when it differs from the body's own
// model field, triggers an alias rewrite of just that field.
func (eb *extractedBody) bodyReader(effectiveModel string) (io.Reader, error) {
	if eb.isJSON && effectiveModel != "" && effectiveModel != eb.model {
		rewritten, err := rewriteModelField(eb.jsonBody, effectiveModel)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(rewritten), nil
	}
	return bytes.NewReader(eb.raw), nil
}

// wantsStreaming implements the streaming-detection rule: Accept header,
// JSON body stream/streaming flags, or truthy stream/streaming query params.
func wantsStreaming(r *http.Request, eb *extractedBody) bool {
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return true
	}
	if eb.isJSON {
		if truthy(eb.jsonBody["stream"]) || truthy(eb.jsonBody["streaming"]) {
			return true
		}
	}
	q := r.URL.Query()
	if isQueryTruthy(q.Get("stream")) || isQueryTruthy(q.Get("streaming")) {
		return true
	}
	return false
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func isQueryTruthy(v string) bool {
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
