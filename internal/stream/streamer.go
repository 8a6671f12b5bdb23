package stream

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"

	"audiovault/internal/config"
	"audiovault/internal/logging"
	"audiovault/internal/services"
)

const defaultChunkBytes = 8192

// Response is a ready-to-write streaming reply. Body must be closed; closing
// it releases the underlying file.
type Response struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
	Range  *Range
	Size   int64
}

// Streamer serves stored files whole or by byte range.
type Streamer struct {
	chunk  int
	logger *slog.Logger
}

// New builds a Streamer using the configured chunk size.
func New(cfg *config.Config, logger *slog.Logger) *Streamer {
	chunk := defaultChunkBytes
	if cfg != nil && cfg.Stream.ChunkBytes > 0 {
		chunk = cfg.Stream.ChunkBytes
	}
	return &Streamer{chunk: chunk, logger: logging.NewComponentLogger(logger, "stream")}
}

// ChunkBytes reports the read size used per chunk.
func (s *Streamer) ChunkBytes() int {
	return s.chunk
}

// Open prepares a response for path. With an empty rangeHeader the whole
// file is returned with status 200; otherwise the first requested range is
// returned with 206, or 416 when it lies entirely outside the file.
func (s *Streamer) Open(path, rangeHeader string) (*Response, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "stream", "open", path, err)
		}
		return nil, services.Wrap(services.ErrIO, "stream", "open", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, services.Wrap(services.ErrIO, "stream", "stat", path, err)
	}
	size := info.Size()

	header := http.Header{}
	header.Set("Accept-Ranges", "bytes")

	if rangeHeader == "" {
		header.Set("Content-Length", strconv.FormatInt(size, 10))
		return &Response{
			Status: http.StatusOK,
			Header: header,
			Body:   newChunkedBody(f, 0, size, s.chunk),
			Size:   size,
		}, nil
	}

	r, ok := ParseRange(rangeHeader, size)
	if !ok {
		_ = f.Close()
		header.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		header.Set("Content-Length", "0")
		return &Response{
			Status: http.StatusRequestedRangeNotSatisfiable,
			Header: header,
			Body:   http.NoBody,
			Size:   size,
		}, nil
	}
	header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size))
	header.Set("Content-Length", strconv.FormatInt(r.Length(), 10))
	return &Response{
		Status: http.StatusPartialContent,
		Header: header,
		Body:   newChunkedBody(f, r.Start, r.Length(), s.chunk),
		Range:  &r,
		Size:   size,
	}, nil
}

// Serve writes path to w honouring the request's Range header. The file is
// released when Serve returns, including when the client goes away mid-body.
func (s *Streamer) Serve(w http.ResponseWriter, req *http.Request, path, contentType string, extra http.Header) error {
	resp, err := s.Open(path, req.Header.Get("Range"))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	for key, values := range extra {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	for key, values := range resp.Header {
		w.Header()[key] = values
	}
	if contentType != "" && resp.Status != http.StatusRequestedRangeNotSatisfiable {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(resp.Status)
	if req.Method == http.MethodHead {
		return nil
	}

	logger := logging.WithContext(req.Context(), s.logger)
	buf := make([]byte, s.chunk)
	var written int64
	for {
		if err := req.Context().Err(); err != nil {
			logger.Debug("stream abandoned", logging.Int64("written", written), logging.Error(err))
			return nil
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				logger.Debug("stream write failed", logging.Int64("written", written), logging.Error(err))
				return nil
			}
			written += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return services.Wrap(services.ErrIO, "stream", "read", path, readErr)
		}
	}
	logger.Debug("stream complete",
		logging.Int("status", resp.Status),
		logging.Int64("bytes", written),
	)
	return nil
}

// chunkedBody reads a window of a file no more than chunk bytes at a time,
// strictly forward.
type chunkedBody struct {
	file    *os.File
	section *io.SectionReader
	chunk   int
	once    sync.Once
	err     error
}

func newChunkedBody(f *os.File, offset, length int64, chunk int) *chunkedBody {
	return &chunkedBody{
		file:    f,
		section: io.NewSectionReader(f, offset, length),
		chunk:   chunk,
	}
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	if len(p) > b.chunk {
		p = p[:b.chunk]
	}
	return b.section.Read(p)
}

func (b *chunkedBody) Close() error {
	b.once.Do(func() {
		b.err = b.file.Close()
	})
	return b.err
}
