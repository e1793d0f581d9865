package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// User is the public profile returned by register and login.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Session is a successful login.
type Session struct {
	User      User   `json:"user"`
	Token     string `json:"token,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

type CreateLinkParams struct {
	UserID      string
	OriginalURL string
	CustomSlug  string
	ExpiresAt   *time.Time
	// DriveID attaches an uploaded file, see Upload.
	DriveID string
}

type CreatedLink struct {
	ShortCode   string `json:"shortCode"`
	ShortURL    string `json:"shortUrl"`
	OriginalURL string `json:"originalUrl"`
	DriveID     string `json:"driveId,omitempty"`
}

// LinkTarget is the answer of the get action.
type LinkTarget struct {
	OriginalURL string `json:"originalUrl"`
	ExpiryDate  string `json:"expiryDate,omitempty"`
	DriveID     string `json:"driveId,omitempty"`
}

// Link is one entry of a user's link list.
type Link struct {
	ShortCode   string `json:"shortCode"`
	ShortURL    string `json:"shortUrl"`
	OriginalURL string `json:"originalUrl"`
	Created     string `json:"created"`
	Clicks      int64  `json:"clicks"`
	ExpiryDate  string `json:"expiryDate,omitempty"`
	DriveID     string `json:"driveId,omitempty"`
	Expired     bool   `json:"expired"`
}

type DeleteResult struct {
	Message string `json:"message"`
	Warning string `json:"warning,omitempty"`
}

type UploadResult struct {
	DriveID     string `json:"driveId"`
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl"`
	ViewURL     string `json:"viewUrl"`
}

// UserLinksCacheKey is the cache key of a user's link list.
func UserLinksCacheKey(userID string) string { return "userLinks_" + userID }

func actionGet(action string, params url.Values) request {
	q := url.Values{"action": {action}}
	for k, v := range params {
		q[k] = v
	}
	return request{method: http.MethodGet, path: "/api", query: q}
}

func actionPost(action string, params url.Values) request {
	return request{
		method:      http.MethodPost,
		path:        "/api",
		query:       url.Values{"action": {action}},
		body:        []byte(params.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}
}

func (c *Client) Register(ctx context.Context, email, username, password string) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := c.do(ctx, actionPost("register", url.Values{
		"email":    {email},
		"username": {username},
		"password": {password},
	}), &out)
	return out.User, err
}

// Login verifies credentials. A returned token is kept and sent with
// every later request.
func (c *Client) Login(ctx context.Context, identifier, password string) (Session, error) {
	var s Session
	err := c.do(ctx, actionPost("login", url.Values{
		"identifier": {identifier},
		"password":   {password},
	}), &s)
	if err != nil {
		return Session{}, err
	}
	if s.Token != "" {
		c.SetToken(s.Token)
	}
	return s, nil
}

func (c *Client) CreateLink(ctx context.Context, p CreateLinkParams) (CreatedLink, error) {
	params := url.Values{
		"userId":      {p.UserID},
		"originalUrl": {p.OriginalURL},
	}
	if p.CustomSlug != "" {
		params.Set("customSlug", p.CustomSlug)
	}
	if p.ExpiresAt != nil {
		params.Set("expiryDate", p.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if p.DriveID != "" {
		params.Set("driveId", p.DriveID)
	}

	var out CreatedLink
	if err := c.do(ctx, actionPost("create", params), &out); err != nil {
		return CreatedLink{}, err
	}
	c.InvalidateCache(UserLinksCacheKey(p.UserID))
	return out, nil
}

func (c *Client) DeleteLink(ctx context.Context, shortCode, userID string) (DeleteResult, error) {
	var out DeleteResult
	err := c.do(ctx, actionPost("delete", url.Values{
		"shortCode": {shortCode},
		"userId":    {userID},
	}), &out)
	if err != nil {
		return DeleteResult{}, err
	}
	c.InvalidateCache(UserLinksCacheKey(userID))
	return out, nil
}

// GetLink resolves a code and counts a click. An expired link fails with
// an error for which IsExpired is true.
func (c *Client) GetLink(ctx context.Context, shortCode string) (LinkTarget, error) {
	var out LinkTarget
	err := c.do(ctx, actionGet("get", url.Values{"shortCode": {shortCode}}), &out)
	return out, err
}

// UserLinks lists a user's links, newest first. Results are cached until
// the TTL passes or a create or delete through this client.
func (c *Client) UserLinks(ctx context.Context, userID string) ([]Link, error) {
	req := actionGet("getUserLinks", url.Values{"userId": {userID}})
	req.cacheKey = UserLinksCacheKey(userID)

	var out struct {
		Links []Link `json:"links"`
	}
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out.Links, nil
}

// Upload stores a file and reports progress to fn, which may be nil.
// Progress reaches 1 only after the server confirms the upload.
func (c *Client) Upload(ctx context.Context, filename, contentType string, data []byte, fn ProgressFunc) (UploadResult, error) {
	body, err := json.Marshal(map[string]string{
		"filename":    filename,
		"contentType": contentType,
		"content":     base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("client: encode upload: %w", err)
	}

	var out UploadResult
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/upload",
		body:        body,
		contentType: "application/json",
		progress:    newProgress(fn),
	}, &out)
	return out, err
}
