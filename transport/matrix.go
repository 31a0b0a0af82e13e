package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// MatrixError is the standard error body returned by Matrix servers.
type MatrixError struct {
	ErrCode      string `json:"errcode"`
	Message      string `json:"error"`
	RetryAfterMS int64  `json:"retry_after_ms,omitempty"`
}

// DecodeError turns a non-2xx response into a *goerrors.Error. When the body
// carries a Matrix errcode it becomes the TextCode so ErrorClassifier
// implementations can recognise it.
func DecodeError(res Response) error {
	if res.Success() {
		return nil
	}
	category := goerrors.HTTPStatusToCategory(res.StatusCode)
	if res.StatusCode >= http.StatusInternalServerError {
		category = goerrors.CategoryExternal
	}
	metadata := map[string]any{"status_code": res.StatusCode}

	var body MatrixError
	if err := json.Unmarshal(res.Body, &body); err == nil && strings.TrimSpace(body.ErrCode) != "" {
		message := strings.TrimSpace(body.Message)
		if message == "" {
			message = body.ErrCode
		}
		if body.RetryAfterMS > 0 {
			metadata["retry_after_ms"] = body.RetryAfterMS
		}
		return goerrors.New(message, category).
			WithCode(res.StatusCode).
			WithTextCode(strings.ToUpper(strings.TrimSpace(body.ErrCode))).
			WithMetadata(metadata)
	}

	message := http.StatusText(res.StatusCode)
	if message == "" {
		message = "unexpected response"
	}
	return transportError("transport: "+strings.ToLower(message), category, res.StatusCode, metadata)
}

// DoJSON encodes in (when non-nil) as the request body, executes the request,
// and decodes a successful response into out (when non-nil). Non-2xx
// responses are returned through DecodeError.
func DoJSON(ctx context.Context, adapter *RESTAdapter, req Request, in any, out any) (Response, error) {
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return Response{}, transportWrapError(
				err,
				goerrors.CategoryBadInput,
				"transport: encode request body",
				http.StatusBadRequest,
				nil,
			)
		}
		req.Body = payload
	}

	res, err := adapter.Do(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if !res.Success() {
		return res, DecodeError(res)
	}
	if out == nil || len(res.Body) == 0 {
		return res, nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return res, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: decode response body",
			http.StatusBadGateway,
			map[string]any{"status_code": res.StatusCode},
		)
	}
	return res, nil
}

// JoinURL appends an API path to a server base URL.
func JoinURL(base string, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
