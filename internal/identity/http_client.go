package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the LMS identity service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CheckAccess reports whether the user is actively enrolled in the course and
// whether they hold course staff rights.
func (c *Client) CheckAccess(ctx context.Context, courseID string, userID int) (Access, error) {
	endpoint := fmt.Sprintf("%s/api/identity/courses/%s/access?user_id=%d", c.baseURL, url.PathEscape(courseID), userID)
	var access Access
	if err := c.getJSON(ctx, endpoint, &access); err != nil {
		return Access{}, err
	}
	return access, nil
}

// CourseRoster returns the enrolled users for the course.
func (c *Client) CourseRoster(ctx context.Context, courseID string) ([]User, error) {
	endpoint := fmt.Sprintf("%s/api/identity/courses/%s/roster", c.baseURL, url.PathEscape(courseID))
	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("identity service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ Adapter = (*Client)(nil)
