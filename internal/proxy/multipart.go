// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"

	"github.com/mavrk/apihub/internal/domain"
)

// Part is one field of an outbound multipart body. File parts carry an
// open stream; text parts carry their rendered value.
type Part struct {
	FieldName string
	Filename  string
	Text      string
	Stream    io.ReadCloser
}

func (p Part) isFile() bool {
	return p.Stream != nil
}

// buildMultipart converts the remaining call values into multipart parts.
// Every stream it opens is appended to the returned closer list, which
// the dispatcher releases unconditionally once the upstream call is done.
// A value that fails to open is logged and skipped; it never blocks the
// other fields or the cleanup of streams already opened.
func buildMultipart(endpoint domain.Endpoint, values map[string]any, logger *slog.Logger) ([]Part, []io.Closer) {
	fileParams := make(map[string]domain.Parameter)
	for _, p := range endpoint.Parameters {
		if p.Type == domain.ParamFile {
			fileParams[p.Name] = p
		}
	}

	parts := make([]Part, 0, len(values))
	closers := make([]io.Closer, 0, 2)

	for name, value := range values {
		if _, ok := fileParams[name]; ok {
			continue
		}
		parts = append(parts, Part{FieldName: name, Text: textPartValue(value)})
	}

	for name, param := range fileParams {
		value, ok := values[name]
		if !ok || value == nil {
			continue
		}

		if param.FileConfig != nil && param.FileConfig.Multiple {
			if sources, ok := value.([]FileSource); ok {
				for _, src := range sources {
					appendFilePart(&parts, &closers, name+"[]", src, logger)
				}
				continue
			}
		}

		src, ok := value.(FileSource)
		if !ok {
			logger.Warn("file parameter value has no usable file source", "field", name)
			continue
		}
		appendFilePart(&parts, &closers, name, src, logger)
	}

	return parts, closers
}

func appendFilePart(parts *[]Part, closers *[]io.Closer, field string, src FileSource, logger *slog.Logger) {
	stream, err := src.Open()
	if err != nil {
		logger.Error("file part open failed", "field", field, "filename", src.Filename(), "error", err)
		return
	}
	*closers = append(*closers, stream)
	*parts = append(*parts, Part{
		FieldName: field,
		Filename:  src.Filename(),
		Stream:    stream,
	})
}

// encodeMultipart writes the parts into a multipart body. Streams are
// consumed here but stay open until the dispatcher's deferred cleanup.
func encodeMultipart(parts []Part) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, part := range parts {
		if part.isFile() {
			fw, err := writer.CreateFormFile(part.FieldName, part.Filename)
			if err != nil {
				return nil, "", fmt.Errorf("create form file %q: %w", part.FieldName, err)
			}
			if _, err := io.Copy(fw, part.Stream); err != nil {
				return nil, "", fmt.Errorf("copy file part %q: %w", part.Filename, err)
			}
			continue
		}
		if err := writer.WriteField(part.FieldName, part.Text); err != nil {
			return nil, "", fmt.Errorf("write field %q: %w", part.FieldName, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
