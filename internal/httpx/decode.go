package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
)

const (
	// MaxRequestBodySize is the maximum allowed request body size (1MB).
	MaxRequestBodySize = 1 << 20
)

// DecodeJSON decodes JSON from the request body with the default size limit.
func DecodeJSON[T any](r *http.Request) (T, error) {
	return DecodeJSONLimit[T](r, MaxRequestBodySize)
}

// DecodeJSONLimit decodes a single JSON object of at most limit bytes from the
// request body. Unknown fields are rejected.
func DecodeJSONLimit[T any](r *http.Request, limit int64) (T, error) {
	var zeroValue T

	r.Body = http.MaxBytesReader(nil, r.Body, limit)
	defer func() {
		_ = r.Body.Close()
	}()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var v T
	if err := decoder.Decode(&v); err != nil {
		var syntaxErr *json.SyntaxError
		var unmarshalErr *json.UnmarshalTypeError
		var maxBytesErr *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxErr):
			return zeroValue, fmt.Errorf("malformed JSON at position %d", syntaxErr.Offset)
		case errors.As(err, &unmarshalErr):
			return zeroValue, fmt.Errorf("invalid value for field %q", unmarshalErr.Field)
		case errors.As(err, &maxBytesErr):
			return zeroValue, fmt.Errorf("request body too large (max %d bytes)", limit)
		case errors.Is(err, io.EOF):
			return zeroValue, errors.New("request body is empty")
		default:
			return zeroValue, fmt.Errorf("failed to decode JSON: %w", err)
		}
	}

	if decoder.More() {
		return zeroValue, errors.New("request body contains multiple JSON objects")
	}

	return v, nil
}

// ParseParams merges query-string and body parameters. The body may be
// form-encoded or a flat JSON object. Body values take precedence over
// query values with the same name.
func ParseParams(r *http.Request) (url.Values, error) {
	return ParseParamsLimit(r, MaxRequestBodySize)
}

// ParseParamsLimit is ParseParams with a body of at most limit bytes.
func ParseParamsLimit(r *http.Request, limit int64) (url.Values, error) {
	if isJSON(r) {
		return parseJSONParams(r, limit)
	}
	if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, limit)
	}
	if err := r.ParseForm(); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, fmt.Errorf("request body too large (max %d bytes)", limit)
		}
		return nil, fmt.Errorf("invalid form parameters: %w", err)
	}
	return r.Form, nil
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// parseJSONParams flattens a JSON object into url.Values. Numbers and
// booleans become their literal text; arrays and objects stay JSON.
func parseJSONParams(r *http.Request, limit int64) (url.Values, error) {
	body, err := DecodeJSONLimit[map[string]any](r, limit)
	if err != nil {
		return nil, err
	}

	params := r.URL.Query()
	for k, v := range body {
		switch v := v.(type) {
		case nil:
		case string:
			params.Set(k, v)
		case float64:
			params.Set(k, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			params.Set(k, strconv.FormatBool(v))
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("invalid value for field %q: %w", k, err)
			}
			params.Set(k, string(raw))
		}
	}
	return params, nil
}
