package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultPDS = "https://bsky.social"

// Network budgets differ per call: media uploads may be slow, but the record
// write must fail fast so the bounded retry fits a human-perceptible wait.
const (
	uploadTimeout = 60 * time.Second
	writeTimeout  = 30 * time.Second
	callTimeout   = 30 * time.Second
)

// Client is a minimal Bluesky/AT Protocol API client for creating post
// records.
type Client struct {
	pds        string
	httpClient *http.Client

	// populated after Login
	accessJwt string
	did       string
}

// NewClient creates a new Bluesky API client. If pds is empty, it defaults to
// https://bsky.social.
func NewClient(pds string) *Client {
	if pds == "" {
		pds = defaultPDS
	}
	return &Client{
		pds:        pds,
		httpClient: &http.Client{},
	}
}

// Login authenticates with the PDS and stores the session token. Use an App
// Password, not your account password.
func (c *Client) Login(ctx context.Context, identifier, password string) error {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}

	var resp createSessionResponse
	if err := c.post(ctx, "/xrpc/com.atproto.server.createSession", body, &resp, callTimeout); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	c.accessJwt = resp.AccessJwt
	c.did = resp.DID
	return nil
}

// DID returns the authenticated user's DID. Only valid after Login.
func (c *Client) DID() string {
	return c.did
}

// BlobRef represents an AT Protocol blob reference for uploaded content.
type BlobRef struct {
	Type string `json:"$type"`
	Ref  struct {
		Link string `json:"$link"`
	} `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
}

// UploadBlob uploads raw image bytes as a blob and returns a reference. The
// blob is garbage-collected if not referenced in a record within a time
// window.
func (c *Client) UploadBlob(ctx context.Context, data []byte, mimeType string) (*BlobRef, error) {
	if c.accessJwt == "" {
		return nil, fmt.Errorf("not authenticated: call Login first")
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pds+"/xrpc/com.atproto.repo.uploadBlob", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Authorization", "Bearer "+c.accessJwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, respBody)
	}

	var result uploadBlobResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &result.Blob, nil
}

// CreateRecord creates a record in the authenticated user's repo under the
// given record key via com.atproto.repo.createRecord. Calling it twice with
// the same rkey fails the second time with a record-exists API error, which is
// what makes retries with a reused key safe.
func (c *Client) CreateRecord(ctx context.Context, collection, rkey string, record any) (uri string, err error) {
	if c.accessJwt == "" {
		return "", fmt.Errorf("not authenticated: call Login first")
	}

	body := createRecordRequest{
		Repo:       c.did,
		Collection: collection,
		RKey:       rkey,
		Record:     record,
	}

	var resp createRecordResponse
	if err := c.post(ctx, "/xrpc/com.atproto.repo.createRecord", body, &resp, writeTimeout); err != nil {
		return "", fmt.Errorf("create record: %w", err)
	}

	return resp.URI, nil
}

// ResolveHandle resolves a handle (e.g. user.bsky.social) to its DID.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	endpoint := c.pds + "/xrpc/com.atproto.identity.resolveHandle?handle=" + url.QueryEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if c.accessJwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessJwt)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newAPIError(resp.StatusCode, respBody)
	}

	var result struct {
		DID string `json:"did"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	return result.DID, nil
}

func (c *Client) post(ctx context.Context, path string, body any, result any, timeout time.Duration) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pds+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessJwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessJwt)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// APIError is a non-2xx XRPC response.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Message = string(body)
	}
	return apiErr
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
}

// RecordExists reports whether the error is the PDS rejecting a createRecord
// because the record key is already taken. That is the ambiguous-success
// signature: a previous attempt was applied even if its response never
// arrived.
func (e *APIError) RecordExists() bool {
	if e.Code == "RecordAlreadyExists" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "already exists")
}

type createSessionResponse struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

type createRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	RKey       string `json:"rkey"`
	Record     any    `json:"record"`
}

type createRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type uploadBlobResponse struct {
	Blob BlobRef `json:"blob"`
}
