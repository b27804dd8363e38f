package apierr

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of an error response body is read.
const maxErrorBody = 64 << 10

// FromResponse builds a KindService error from a non-success HTTP response.
// It reads (and does not close) a bounded prefix of resp.Body looking for a
// FastAPI-style {"detail": ...} object. String details are kept verbatim;
// structured details (validation error lists) are kept as compact JSON.
func FromResponse(op string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return Service(op, resp.StatusCode, detailFromBody(body))
}

func detailFromBody(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	for _, raw := range []json.RawMessage{envelope.Detail, envelope.Error} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err == nil {
			return compact.String()
		}
	}
	return ""
}
