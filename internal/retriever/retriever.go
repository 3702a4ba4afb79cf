// Copyright (c) 2025-present deep.rent GmbH (https://www.deep.rent)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retriever supplies the URLSource's out-of-core collaborator: a
// small contract for fetching raw bytes from a URL or file, plus a tuned
// HTTP implementation. Callers of internal/source may substitute their own
// Retriever; none of its behavior is part of the resolution pipeline's
// contract.
package retriever

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

// Retriever fetches the raw bytes of a resource identified by location
// (a URL or a file path, depending on the implementation).
type Retriever interface {
	Retrieve(ctx context.Context, location string) ([]byte, error)
}

// RetrieverFunc adapts a function to the Retriever interface.
type RetrieverFunc func(ctx context.Context, location string) ([]byte, error)

func (f RetrieverFunc) Retrieve(ctx context.Context, location string) ([]byte, error) {
	return f(ctx, location)
}

// httpOptions configures an HTTPRetriever.
type httpOptions struct {
	client         *http.Client
	connectTimeout time.Duration
	readTimeout    time.Duration
	sizeLimit      int64
	headers        map[string]string
}

func defaultHTTPOptions() httpOptions {
	return httpOptions{
		connectTimeout: 500 * time.Millisecond,
		readTimeout:    500 * time.Millisecond,
		sizeLimit:      50 * 1024, // 50 KiB, per Builder defaults
		headers:        map[string]string{},
	}
}

// HTTPOption configures an HTTPRetriever.
type HTTPOption func(*httpOptions)

// WithClient overrides the underlying http.Client entirely. When set,
// WithConnectTimeout and WithReadTimeout have no effect on it.
func WithClient(client *http.Client) HTTPOption {
	return func(o *httpOptions) {
		if client != nil {
			o.client = client
		}
	}
}

// WithConnectTimeout bounds how long the TCP+TLS handshake may take.
func WithConnectTimeout(d time.Duration) HTTPOption {
	return func(o *httpOptions) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithReadTimeout sets the read budget. The client's overall request
// deadline, including reading the response body, is the connect timeout
// plus this read timeout.
func WithReadTimeout(d time.Duration) HTTPOption {
	return func(o *httpOptions) {
		if d > 0 {
			o.readTimeout = d
		}
	}
}

// WithSizeLimit bounds the number of response bytes read. Responses larger
// than this are rejected to protect against a misbehaving or hostile
// endpoint.
func WithSizeLimit(n int64) HTTPOption {
	return func(o *httpOptions) {
		if n > 0 {
			o.sizeLimit = n
		}
	}
}

// WithHeader sets an additional header sent with every request, such as a
// User-Agent or an API key.
func WithHeader(key, value string) HTTPOption {
	return func(o *httpOptions) {
		if key != "" {
			o.headers[key] = value
		}
	}
}

// httpRetriever fetches resources over HTTP(S).
type httpRetriever struct {
	client    *http.Client
	sizeLimit int64
	headers   map[string]string
}

// NewHTTP creates a Retriever backed by a tuned *http.Client. Connect and
// read timeouts are enforced via the transport's dialer and an overall
// request deadline, respectively; the response body is capped at
// sizeLimit bytes.
func NewHTTP(opts ...HTTPOption) Retriever {
	o := defaultHTTPOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.client == nil {
		o.client = &http.Client{
			Timeout: o.connectTimeout + o.readTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: o.connectTimeout,
				}).DialContext,
				TLSHandshakeTimeout: o.connectTimeout,
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     60 * time.Second,
			},
		}
	}

	return &httpRetriever{
		client:    o.client,
		sizeLimit: o.sizeLimit,
		headers:   o.headers,
	}
}

func (r *httpRetriever) Retrieve(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	res, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", location, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %q: unexpected status %s", location, res.Status)
	}

	limited := io.LimitReader(res.Body, r.sizeLimit+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > r.sizeLimit {
		return nil, fmt.Errorf("response exceeds size limit of %d bytes", r.sizeLimit)
	}

	return body, nil
}

// fileRetriever reads resources from the local filesystem. The location
// argument is a file path; it is re-read on every call so file-based key
// sets can be rotated without restarting the process.
type fileRetriever struct{}

// NewFile creates a Retriever that reads from local files.
func NewFile() Retriever { return fileRetriever{} }

func (fileRetriever) Retrieve(_ context.Context, location string) ([]byte, error) {
	fi, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("stat file %q: %w", location, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("file %q exists but is not regular", location)
	}
	body, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("read file %q: %w", location, err)
	}
	return body, nil
}
