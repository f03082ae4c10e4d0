package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Production endpoint bases; overridable in config for testing.
const (
	DefaultAssetsURL = "https://apis.roblox.com/assets"
	DefaultConfigURL = "https://itemconfiguration.roblox.com"
	DefaultAuthURL   = "https://auth.roblox.com"
)

// Client talks to the marketplace's asset endpoints: creation, operation
// polling, and pricing/release.
type Client struct {
	AssetsURL  string // creation + operations API base
	ConfigURL  string // item configuration (release) API base
	HTTPClient *http.Client
	Auth       AuthContext
}

// NewClient builds a client bound to one destination's credentials.
func NewClient(assetsURL, configURL string, auth AuthContext) *Client {
	return &Client{
		AssetsURL:  assetsURL,
		ConfigURL:  configURL,
		Auth:       auth,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// CreateRequest describes an asset creation call.
type CreateRequest struct {
	DisplayName   string
	Description   string
	AssetKind     string // "shirt" or "pants"
	DestinationID string
	FilePath      string
	ExpectedPrice int
}

type createPayload struct {
	AssetType       string          `json:"assetType"`
	CreationContext creationContext `json:"creationContext"`
	Description     string          `json:"description"`
	DisplayName     string          `json:"displayName"`
}

type creationContext struct {
	Creator       assetCreator `json:"creator"`
	ExpectedPrice int          `json:"expectedPrice"`
}

type assetCreator struct {
	GroupID string `json:"groupId"`
}

// CreateAsset submits the multipart creation request (JSON metadata plus
// binary payload) and returns the asynchronous operation id to poll.
func (c *Client) CreateAsset(ctx context.Context, req CreateRequest) (string, error) {
	file, err := os.Open(req.FilePath)
	if err != nil {
		return "", fmt.Errorf("open asset file: %w", err)
	}
	defer file.Close()

	payload, err := json.Marshal(createPayload{
		AssetType: req.AssetKind,
		CreationContext: creationContext{
			Creator:       assetCreator{GroupID: req.DestinationID},
			ExpectedPrice: req.ExpectedPrice,
		},
		Description: req.Description,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return "", fmt.Errorf("marshal creation payload: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("request", string(payload)); err != nil {
		return "", fmt.Errorf("write request part: %w", err)
	}
	part, err := createImagePart(writer, filepath.Base(req.FilePath))
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, c.AssetsURL+"/v1/assets", &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: create asset: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var decoded struct {
		OperationID string `json:"operationId"`
		Message     string `json:"message"`
	}
	// Non-JSON bodies still classify by status code below.
	_ = json.Unmarshal(body, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classify(&APIError{
			StatusCode: resp.StatusCode,
			Message:    decoded.Message,
			Body:       string(body),
		})
	}
	if decoded.OperationID == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: decoded.Message, Body: string(body)}
	}
	return decoded.OperationID, nil
}

// createImagePart adds the binary part with the MIME type matching the
// file extension.
func createImagePart(writer *multipart.Writer, filename string) (io.Writer, error) {
	mimeType := "image/png"
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		mimeType = "image/jpeg"
	case ".gif":
		mimeType = "image/gif"
	case ".webp":
		mimeType = "image/webp"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="fileContent"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	return writer.CreatePart(header)
}

// PollResult is one operations endpoint response.
type PollResult struct {
	Done    bool
	AssetID string
}

// PollOperation fetches the state of an asynchronous creation job. When
// the job is done the result carries the created asset id.
func (c *Client) PollOperation(ctx context.Context, operationID string) (*PollResult, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, c.AssetsURL+"/v1/operations/"+operationID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: poll operation: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, classify(&APIError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var decoded struct {
		Done     bool `json:"done"`
		Response struct {
			AssetID json.Number `json:"assetId"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return &PollResult{Done: decoded.Done, AssetID: decoded.Response.AssetID.String()}, nil
}

// ReleaseRequest prices and publishes a created asset.
type ReleaseRequest struct {
	AssetID       string
	DestinationID string
	Name          string
	Description   string
	Price         int
}

type releasePayload struct {
	TargetID             string `json:"targetId"`
	Price                int    `json:"price"`
	PublishingType       int    `json:"publishingType"`
	IdempotencyToken     string `json:"idempotencyToken"`
	CreatorTargetID      string `json:"creatorTargetId"`
	Name                 string `json:"name"`
	Description          string `json:"description"`
	IsFree               bool   `json:"isFree"`
	AgreedPublishingFee  int    `json:"agreedPublishingFee"`
	QuantityLimitPerUser int    `json:"quantityLimitPerUser"`
	ResaleRestriction    int    `json:"resaleRestriction"`
}

// ReleaseAsset submits the pricing/release call. Every invocation carries
// a freshly generated idempotency token: the remote side may treat a
// retried token as already applied, so a retry must re-submit with a new
// one. Success is HTTP 200 with application status 0; any other result is
// reported as a ReleaseError, except the generic rate-limit and
// auth-expired signals which stay retryable.
func (c *Client) ReleaseAsset(ctx context.Context, req ReleaseRequest) error {
	body, err := json.Marshal(releasePayload{
		TargetID:          req.AssetID,
		Price:             req.Price,
		PublishingType:    2,
		IdempotencyToken:  uuid.NewString(),
		CreatorTargetID:   req.DestinationID,
		Name:              req.Name,
		Description:       req.Description,
		ResaleRestriction: 2,
	})
	if err != nil {
		return fmt.Errorf("marshal release payload: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, c.ConfigURL+"/v1/collectibles", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: release asset: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: release: %s", ErrRateLimited, respBody)
	case http.StatusForbidden:
		return fmt.Errorf("%w: release: %s", ErrAuthExpired, respBody)
	}

	var decoded struct {
		Status int `json:"status"`
	}
	decoded.Status = -1
	_ = json.Unmarshal(respBody, &decoded)

	if resp.StatusCode == http.StatusOK && decoded.Status == 0 {
		return nil
	}
	return &ReleaseError{StatusCode: resp.StatusCode, Status: decoded.Status, Body: string(respBody)}
}

// newRequest attaches the session cookie and CSRF token every endpoint
// requires.
func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	token, err := c.Auth.CSRFToken(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-CSRF-TOKEN", token)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: c.Auth.SessionToken()})
	return req, nil
}
