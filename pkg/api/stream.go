package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

// StreamHandle is an open optimize-stream response. The caller owns Body and
// must close it; Body yields the raw event-stream bytes as the server
// flushes them.
type StreamHandle struct {
	Body io.ReadCloser
}

// Close closes the underlying response body.
func (h *StreamHandle) Close() error {
	if h == nil || h.Body == nil {
		return nil
	}
	return h.Body.Close()
}

// OptimizeStream uploads an image and opens the streaming optimization
// response. A non-2xx status is returned as *APIError after draining the
// body; the stream itself is never retried once open. The request is exempt
// from the client timeout because variant generation legitimately runs for
// minutes; cancellation happens through ctx.
func (c *Client) OptimizeStream(ctx context.Context, req OptimizeRequest) (*StreamHandle, error) {
	if req.File == nil {
		return nil, fmt.Errorf("optimize request needs a file")
	}

	body, contentType, err := buildOptimizeForm(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/optimize-stream", body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "text/event-stream")

	// A streaming response outlives any sane request timeout. Use a
	// dedicated client sharing the transport so the network log still
	// sees the request.
	streamClient := &http.Client{Transport: c.httpClient.Transport}

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := c.parseError(resp)
		resp.Body.Close()
		return nil, apiErr
	}

	return &StreamHandle{Body: resp.Body}, nil
}

// buildOptimizeForm assembles the multipart body for the upload. The image
// lands in the "file" part; optional shipping inputs become plain fields.
func buildOptimizeForm(req OptimizeRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := req.Filename
	if filename == "" {
		filename = "upload.jpg"
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, escapeQuotes(filename)))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return nil, "", fmt.Errorf("copying file: %w", err)
	}

	if req.ActualWeightG != nil {
		if err := writer.WriteField("actual_weight_g", strconv.FormatFloat(*req.ActualWeightG, 'f', -1, 64)); err != nil {
			return nil, "", err
		}
	}
	if req.DimensionsCM != "" {
		if err := writer.WriteField("dimensions_cm", req.DimensionsCM); err != nil {
			return nil, "", err
		}
	}
	if req.PromptVariant != "" {
		if err := writer.WriteField("prompt_variant", req.PromptVariant); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return &buf, writer.FormDataContentType(), nil
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
