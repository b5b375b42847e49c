package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Source is a random-access view of a media resource.
type Source interface {
	io.ReaderAt
	Size() int64
	Close() error
}

// Open resolves a media locator. http(s) URLs are read with range requests,
// anything else is treated as a local path.
func Open(ctx context.Context, client *http.Client, ref string) (Source, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return openRemote(ctx, client, ref)
	default:
		return openFile(strings.TrimPrefix(ref, "file://"))
	}
}

type fileSource struct {
	*os.File
	size int64
}

func openFile(path string) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileSource{File: f, size: stat.Size()}, nil
}

func (s *fileSource) Size() int64 { return s.size }

type remoteSource struct {
	ctx    context.Context
	client *http.Client
	url    string
	size   int64
}

func openRemote(ctx context.Context, client *http.Client, url string) (*remoteSource, error) {
	if client == nil {
		client = http.DefaultClient
	}
	s := &remoteSource{ctx: ctx, client: client, url: url}

	resp, err := s.get("bytes=0-0")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1))

	switch resp.StatusCode {
	case http.StatusPartialContent:
		s.size, err = parseContentRangeTotal(resp.Header.Get("Content-Range"))
		if err != nil {
			return nil, err
		}
	case http.StatusOK:
		if resp.ContentLength <= 0 {
			return nil, errors.New("server reported no content length")
		}
		s.size = resp.ContentLength
	default:
		return nil, fmt.Errorf("media request returned status code: %d", resp.StatusCode)
	}
	return s, nil
}

func (s *remoteSource) get(byteRange string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Range", byteRange)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	return resp, nil
}

func (s *remoteSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= s.size {
		return 0, io.EOF
	}
	end := off + int64(len(p)) - 1
	if end >= s.size {
		end = s.size - 1
	}

	resp, err := s.get(fmt.Sprintf("bytes=%d-%d", off, end))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body := resp.Body
	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		// No range support, skip to the requested offset.
		if _, err := io.CopyN(io.Discard, body, off); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("media range request returned status code: %d", resp.StatusCode)
	}

	n, err := io.ReadFull(body, p[:end-off+1])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *remoteSource) Size() int64  { return s.size }
func (s *remoteSource) Close() error { return nil }

// parseContentRangeTotal extracts the complete length from "bytes a-b/total".
func parseContentRangeTotal(v string) (int64, error) {
	i := strings.LastIndexByte(v, '/')
	if i < 0 || v[i+1:] == "*" {
		return 0, fmt.Errorf("unusable content range %q", v)
	}
	total, err := strconv.ParseInt(v[i+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unusable content range %q: %w", v, err)
	}
	return total, nil
}
