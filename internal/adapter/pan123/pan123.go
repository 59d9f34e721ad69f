package pan123

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/imroc/req/v3"

	"github.com/Ning0612/dedupwatch/internal/adapter"
	"github.com/Ning0612/dedupwatch/internal/domain"
)

const (
	// DefaultBaseURL is the web API root used by the 123pan web client
	DefaultBaseURL = "https://www.123pan.com/b/api"
	// DefaultLoginURL is the password sign-in endpoint
	DefaultLoginURL = "https://login.123pan.com/api/user/sign_in"
	// DefaultTimeout bounds every request so one file cannot stall the loop
	DefaultTimeout = 30 * time.Second

	uploadRequestPath = "/file/upload_request"

	codeSignInOK     = 200
	codeUnauthorized = 401

	// duplicate policy on name collision
	duplicateKeepBoth  = 1
	duplicateOverwrite = 2
)

// UserAgent is sent with every request
var UserAgent = "dedupwatch/1.0"

// Config holds connection settings for the 123pan client
type Config struct {
	Passport string
	Password string
	BaseURL  string
	LoginURL string
	Timeout  time.Duration
}

// Client implements adapter.HashUploader against the 123pan web API.
// It signs in lazily and keeps the bearer token until the store rejects it.
type Client struct {
	cfg  Config
	http *req.Client

	mu    sync.Mutex
	token string
}

var _ adapter.HashUploader = (*Client)(nil)

// New creates a client. It does not contact the store; sign-in happens on
// the first upload so a network outage at startup is not fatal.
func New(cfg Config) (*Client, error) {
	if cfg.Passport == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: passport and password are required", domain.ErrRemoteDisabled)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultLoginURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	client := req.C().
		SetTimeout(cfg.Timeout).
		SetUserAgent(UserAgent).
		SetCommonHeader("platform", "web").
		SetCommonHeader("App-Version", "3").
		SetCommonRetryCount(0)

	return &Client{
		cfg:  cfg,
		http: client,
	}, nil
}

// envelope is the common response wrapper of the web API
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type signInRequest struct {
	Passport string `json:"passport"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type signInData struct {
	Token string `json:"token"`
}

type uploadRequest struct {
	DriveID      int    `json:"driveId"`
	Duplicate    int    `json:"duplicate"`
	Etag         string `json:"etag"`
	FileName     string `json:"fileName"`
	FileSize     int64  `json:"fileSize"`
	ParentFileID int64  `json:"parentFileId"`
	Type         int    `json:"type"`
}

type uploadData struct {
	Reuse bool `json:"Reuse"`
	Info  struct {
		FileID int64 `json:"FileId"`
	} `json:"Info"`
}

// UploadByHash asks the store to complete an upload from digest and size
func (c *Client) UploadByHash(ctx context.Context, r adapter.UploadByHashRequest) (*adapter.UploadByHashResponse, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	duplicate := duplicateKeepBoth
	if r.Overwrite {
		duplicate = duplicateOverwrite
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBearerAuthToken(token).
		SetBody(&uploadRequest{
			Duplicate:    duplicate,
			Etag:         r.Digest,
			FileName:     r.Name,
			FileSize:     r.Size,
			ParentFileID: r.ParentID,
		}).
		Post(c.cfg.BaseURL + uploadRequestPath)
	if err != nil {
		return nil, fmt.Errorf("%w: upload request: %v", domain.ErrRemoteCall, err)
	}

	if resp.StatusCode == codeUnauthorized {
		c.dropToken(token)
		return nil, fmt.Errorf("%w: upload request: session expired", domain.ErrRemoteCall)
	}
	if resp.IsErrorState() {
		return nil, fmt.Errorf("%w: upload request: http %d", domain.ErrRemoteCall, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(resp.Bytes(), &env); err != nil {
		return nil, fmt.Errorf("%w: upload request: decode response: %v", domain.ErrRemoteCall, err)
	}
	if env.Code == codeUnauthorized {
		c.dropToken(token)
		return nil, fmt.Errorf("%w: upload request: session expired", domain.ErrRemoteCall)
	}

	result := &adapter.UploadByHashResponse{
		Code:    env.Code,
		Message: env.Message,
		Raw:     resp.String(),
	}

	if env.Code == adapter.CodeOK && len(env.Data) > 0 && string(env.Data) != "null" {
		var data uploadData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: upload request: decode data: %v", domain.ErrRemoteCall, err)
		}
		result.Reuse = data.Reuse
		result.FileID = data.Info.FileID
	}

	return result, nil
}

// ensureToken returns the cached token, signing in if there is none
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return c.token, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&signInRequest{
			Passport: c.cfg.Passport,
			Password: c.cfg.Password,
			Remember: true,
		}).
		Post(c.cfg.LoginURL)
	if err != nil {
		return "", fmt.Errorf("%w: sign in: %v", domain.ErrRemoteCall, err)
	}
	if resp.IsErrorState() {
		return "", fmt.Errorf("%w: sign in: http %d", domain.ErrRemoteCall, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(resp.Bytes(), &env); err != nil {
		return "", fmt.Errorf("%w: sign in: decode response: %v", domain.ErrRemoteCall, err)
	}
	if env.Code != codeSignInOK {
		return "", fmt.Errorf("%w: %w: code %d: %s", domain.ErrRemoteCall, domain.ErrAuthFailed, env.Code, env.Message)
	}

	var data signInData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		return "", fmt.Errorf("%w: %w: sign in returned no token", domain.ErrRemoteCall, domain.ErrAuthFailed)
	}

	c.token = data.Token
	return c.token, nil
}

// dropToken forgets token so the next call signs in again
func (c *Client) dropToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
	}
}

// Close releases idle connections
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}
