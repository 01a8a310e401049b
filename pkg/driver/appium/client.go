// Package appium implements core.Session using an Appium server via the W3C WebDriver protocol.
package appium

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/pkg/errors"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// WebDriverError is an error value returned by the server.
type WebDriverError struct {
	Status  int
	Code    string // W3C error code: "no such element", "stale element reference", ...
	Message string
}

func (e *WebDriverError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap maps W3C codes onto the session sentinels.
func (e *WebDriverError) Unwrap() error {
	switch e.Code {
	case "no such element":
		return core.ErrNoSuchElement
	case "stale element reference":
		return core.ErrStaleElement
	case "invalid session id":
		return core.ErrSessionNotActive
	}
	return nil
}

// Client handles HTTP communication with the Appium server.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
}

// NewClient creates a new Appium client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Minute, // stop_recording_screen returns the whole video
		},
	}
}

// SessionID returns the current session id, empty when disconnected.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(ctx context.Context, capabilities map[string]interface{}) error {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
		},
	}

	resp, err := c.post(ctx, "/session", body)
	if err != nil {
		return errors.Wrap(err, "failed to create session")
	}

	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return errors.New("invalid session response")
	}

	c.sessionID, _ = value["sessionId"].(string)
	if c.sessionID == "" {
		return errors.New("no session ID in response")
	}
	return nil
}

// Disconnect closes the session.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.delete(ctx, c.sessionPath())
	c.sessionID = ""
	return err
}

// Element Operations

// FindElement finds a single element. A missing element yields an error
// matching core.ErrNoSuchElement.
func (c *Client) FindElement(ctx context.Context, strategy, value string) (string, error) {
	resp, err := c.post(ctx, c.sessionPath()+"/element", map[string]interface{}{
		"using": strategy,
		"value": value,
	})
	if err != nil {
		return "", err
	}

	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return "", core.ErrNoSuchElement
	}
	id := extractElementID(elemValue)
	if id == "" {
		return "", core.ErrNoSuchElement
	}
	return id, nil
}

// ClickElement clicks an element using WebDriver standard endpoint.
func (c *Client) ClickElement(ctx context.Context, elementID string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/click", map[string]interface{}{})
	return err
}

// SetElementValue replaces an element's text.
func (c *Client) SetElementValue(ctx context.Context, elementID, text string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/value", map[string]interface{}{
		"text": text,
	})
	return err
}

// GetElementAttribute returns an element's attribute value.
func (c *Client) GetElementAttribute(ctx context.Context, elementID, name string) (string, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/attribute/"+name)
	if err != nil {
		return "", err
	}
	switch v := resp["value"].(type) {
	case string:
		return v, nil
	case bool:
		return fmt.Sprintf("%t", v), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// IsElementDisplayed checks if element is visible.
func (c *Client) IsElementDisplayed(ctx context.Context, elementID string) (bool, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/displayed")
	if err != nil {
		return false, err
	}
	displayed, _ := resp["value"].(bool)
	return displayed, nil
}

// Touch/Gesture Operations (W3C Actions)

// PerformTouchActions sends one touch pointer source with the given actions.
func (c *Client) PerformTouchActions(ctx context.Context, actions []map[string]interface{}) error {
	payload := []map[string]interface{}{
		{
			"type":       "pointer",
			"id":         "finger1",
			"parameters": map[string]interface{}{"pointerType": "touch"},
			"actions":    actions,
		},
	}
	_, err := c.post(ctx, c.sessionPath()+"/actions", map[string]interface{}{"actions": payload})
	return err
}

// Screen recording

// StartRecordingScreen starts the device screen recorder.
func (c *Client) StartRecordingScreen(ctx context.Context, options map[string]interface{}) error {
	_, err := c.post(ctx, c.sessionPath()+"/appium/start_recording_screen", map[string]interface{}{
		"options": options,
	})
	return err
}

// StopRecordingScreen stops the recorder and returns the base64 encoded video.
func (c *Client) StopRecordingScreen(ctx context.Context) (string, error) {
	resp, err := c.post(ctx, c.sessionPath()+"/appium/stop_recording_screen", map[string]interface{}{})
	if err != nil {
		return "", err
	}
	payload, ok := resp["value"].(string)
	if !ok {
		return "", errors.New("invalid recording response")
	}
	return payload, nil
}

// Screenshot captures the screen as PNG.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/screenshot")
	if err != nil {
		return nil, err
	}
	b64, ok := resp["value"].(string)
	if !ok {
		return nil, errors.New("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(b64)
}

// SetOrientation sets LANDSCAPE or PORTRAIT.
func (c *Client) SetOrientation(ctx context.Context, orientation string) error {
	_, err := c.post(ctx, c.sessionPath()+"/orientation", map[string]interface{}{
		"orientation": strings.ToUpper(orientation),
	})
	return err
}

// SetImplicitWait sets the implicit wait timeout.
func (c *Client) SetImplicitWait(ctx context.Context, timeout time.Duration) error {
	_, err := c.post(ctx, c.sessionPath()+"/timeouts", map[string]interface{}{
		"implicit": timeout.Milliseconds(),
	})
	return err
}

// ExecuteMobile executes a mobile: command.
func (c *Client) ExecuteMobile(ctx context.Context, command string, args map[string]interface{}) (interface{}, error) {
	resp, err := c.post(ctx, c.sessionPath()+"/execute/sync", map[string]interface{}{
		"script": "mobile: " + command,
		"args":   []interface{}{args},
	})
	if err != nil {
		return nil, err
	}
	return resp["value"], nil
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodPost, path, body)
}

func (c *Client) delete(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodDelete, path, nil)
}

func (c *Client) request(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, errors.Wrapf(err, "failed to parse response (HTTP %d)", resp.StatusCode)
	}

	// Check for WebDriver error
	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errType, ok := errValue["error"].(string); ok {
			msg, _ := errValue["message"].(string)
			return result, &WebDriverError{Status: resp.StatusCode, Code: errType, Message: msg}
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return result, &WebDriverError{Status: resp.StatusCode, Code: "unknown error", Message: http.StatusText(resp.StatusCode)}
	}

	return result, nil
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}
