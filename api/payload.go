package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

var (
	errPayloadTooLarge = errors.New("payload too large")
	errNotUTF8         = errors.New("payload is not valid UTF-8")
	errEmptyPayload    = errors.New("payload is empty")
)

// readPayload reads at most limit bytes and checks the body is UTF-8
// encoded, well-formed JSON. The returned bytes are stored verbatim.
func readPayload(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errPayloadTooLarge
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, errPayloadTooLarge
	}
	if err := checkPayload(body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkPayload validates an already-buffered payload.
func checkPayload(body []byte) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return errEmptyPayload
	}
	if !utf8.Valid(body) {
		return errNotUTF8
	}
	if _, err := jsonschema.UnmarshalJSON(bytes.NewReader(body)); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return nil
}
