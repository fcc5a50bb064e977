// Package ffmpegapi provides a concat.Concatenator backed by the hosted
// ffmpeg-api.com service. Each input file goes through an upload handshake
// (request a signed URL, PUT the bytes), then one processing task joins all
// inputs with an ffmpeg concat filter and the result is downloaded.
package ffmpegapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/narravox/narravox/pkg/provider/concat"
)

const defaultBaseURL = "https://api.ffmpeg-api.com"

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient replaces the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client implements concat.Concatenator against ffmpeg-api.com.
type Client struct {
	auth       string
	baseURL    string
	httpClient *http.Client
}

// Compile-time interface check.
var _ concat.Concatenator = (*Client)(nil)

// New creates a new Client. auth is the full Authorization header value
// (e.g. "Basic <key>") and must be non-empty.
func New(auth string, opts ...Option) (*Client, error) {
	if auth == "" {
		return nil, errors.New("ffmpegapi: auth must not be empty")
	}
	c := &Client{
		auth:       auth,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// fileResponse is the response to POST /file: a provider-side file path and
// a signed upload URL.
type fileResponse struct {
	File struct {
		FilePath string `json:"file_path"`
	} `json:"file"`
	Upload struct {
		URL string `json:"url"`
	} `json:"upload"`
}

// processRequest is the body of POST /ffmpeg/process.
type processRequest struct {
	Task processTask `json:"task"`
}

type processTask struct {
	Inputs        []processInput  `json:"inputs"`
	FilterComplex string          `json:"filter_complex"`
	Outputs       []processOutput `json:"outputs"`
}

type processInput struct {
	FilePath string `json:"file_path"`
}

type processOutput struct {
	File    string   `json:"file"`
	Options []string `json:"options"`
	Maps    []string `json:"maps"`
}

// processResponse is the response to POST /ffmpeg/process.
type processResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Result []struct {
		DownloadURL string `json:"download_url"`
	} `json:"result"`
}

// Concatenate implements [concat.Concatenator]: uploads every file, runs one
// concat task, and downloads the joined MP3.
func (c *Client) Concatenate(ctx context.Context, files [][]byte, outputName string) ([]byte, error) {
	if len(files) == 0 {
		return nil, errors.New("ffmpegapi: no input files")
	}

	paths := make([]string, 0, len(files))
	for i, f := range files {
		name := fmt.Sprintf("chunk_%03d.mp3", i)
		path, err := c.upload(ctx, f, name)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	return c.process(ctx, paths, outputName)
}

// upload requests a signed URL for name and PUTs the audio bytes to it,
// returning the provider-side file path.
func (c *Client) upload(ctx context.Context, audio []byte, name string) (string, error) {
	body, err := json.Marshal(map[string]string{"file_name": name})
	if err != nil {
		return "", fmt.Errorf("ffmpegapi: marshal upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/file", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ffmpegapi: upload handshake: %w", err)
	}
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &concat.ProviderError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", providerErr(resp)
	}

	var fr fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return "", fmt.Errorf("ffmpegapi: decode upload handshake: %w", err)
	}
	if fr.Upload.URL == "" || fr.File.FilePath == "" {
		return "", &concat.ProviderError{Detail: "upload handshake returned no upload URL"}
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, fr.Upload.URL, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("ffmpegapi: upload: %w", err)
	}
	putReq.Header.Set("Content-Type", "audio/mpeg")

	putResp, err := c.httpClient.Do(putReq)
	if err != nil {
		return "", &concat.ProviderError{Detail: err.Error()}
	}
	defer putResp.Body.Close()
	if putResp.StatusCode < 200 || putResp.StatusCode > 299 {
		return "", providerErr(putResp)
	}

	return fr.File.FilePath, nil
}

// process runs the concat task over the uploaded paths and downloads the
// joined result.
func (c *Client) process(ctx context.Context, paths []string, outputName string) ([]byte, error) {
	inputs := make([]processInput, 0, len(paths))
	var labels strings.Builder
	for i, p := range paths {
		inputs = append(inputs, processInput{FilePath: p})
		fmt.Fprintf(&labels, "[%d:a]", i)
	}
	filter := fmt.Sprintf("%sconcat=n=%d:v=0:a=1[out]", labels.String(), len(paths))

	body, err := json.Marshal(processRequest{Task: processTask{
		Inputs:        inputs,
		FilterComplex: filter,
		Outputs: []processOutput{{
			File:    outputName,
			Options: []string{"-acodec", "libmp3lame", "-ab", "192k"},
			Maps:    []string{"[out]"},
		}},
	}})
	if err != nil {
		return nil, fmt.Errorf("ffmpegapi: marshal process request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ffmpeg/process", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ffmpegapi: process: %w", err)
	}
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &concat.ProviderError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, providerErr(resp)
	}

	var pr processResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("ffmpegapi: decode process response: %w", err)
	}
	if !pr.OK {
		detail := pr.Error
		if detail == "" {
			detail = "ffmpeg processing failed"
		}
		return nil, &concat.ProviderError{Detail: detail}
	}
	if len(pr.Result) == 0 || pr.Result[0].DownloadURL == "" {
		return nil, &concat.ProviderError{Detail: "process response carried no download URL"}
	}

	return c.download(ctx, pr.Result[0].DownloadURL)
}

// download fetches the processed file.
func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ffmpegapi: download: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &concat.ProviderError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, providerErr(resp)
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &concat.ProviderError{Detail: fmt.Sprintf("read result: %v", err)}
	}
	return out, nil
}

// providerErr turns a non-success HTTP response into a ProviderError with as
// much body detail as is available.
func providerErr(resp *http.Response) *concat.ProviderError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	detail := strings.TrimSpace(string(raw))
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	return &concat.ProviderError{StatusCode: resp.StatusCode, Detail: detail}
}
