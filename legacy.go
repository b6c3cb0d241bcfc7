package patstat

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"strings"
	"time"
)

const defaultLegacyBaseURL = "https://publication.epo.org/raw-data"

// Values of the action query parameter of the authentication endpoint.
const (
	legacyDisconnect = "0"
	legacyConnect    = "1"
)

// LegacyClient speaks the XML raw-data API. Authentication is a login
// call that sets a session cookie; every later call rides on that cookie.
type LegacyClient struct {
	config        *Config
	httpClient    *http.Client
	authenticated bool
	logger        *slog.Logger
}

// DefaultLegacyConfig returns default configuration for the legacy API
func DefaultLegacyConfig() *Config {
	return &Config{
		API:       APILegacy,
		BaseURL:   defaultLegacyBaseURL,
		UserAgent: DefaultConfig().UserAgent,
	}
}

// NewLegacyClient creates a client for the legacy raw-data API.
func NewLegacyClient(config *Config, opts ...Option) (*LegacyClient, error) {
	if config == nil {
		config = DefaultLegacyConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultLegacyBaseURL
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultConfig().UserAgent
	}

	o := applyOptions(opts)
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	return &LegacyClient{
		config:     config,
		httpClient: httpClient,
		logger:     o.logger,
	}, nil
}

// downloadArea is the root element of every legacy response. Each
// endpoint fills a different subset of the fields.
type downloadArea struct {
	XMLName        xml.Name              `xml:"download-area"`
	Authentication *legacyAuthentication `xml:"authentication"`
	Products       []legacyProduct       `xml:"products>product"`
	Editions       []legacyEdition       `xml:"editions>edition"`
	Edition        *legacyEdition        `xml:"edition"`
	Files          []legacyFile          `xml:"files>file"`
}

type legacyAuthentication struct {
	Authenticated string `xml:"authenticated,attr"`
}

type legacyProduct struct {
	Name string `xml:"name"`
	URL  string `xml:"url"`
}

type legacyEdition struct {
	Version  string `xml:"version"`
	URL      string `xml:"url"`
	FilesURL string `xml:"files-url"`
}

type legacyFile struct {
	Name     string `xml:"name"`
	URL      string `xml:"url"`
	Checksum string `xml:"checksum"`
	Size     string `xml:"size"`
}

func (c *LegacyClient) authURL(action string) string {
	q := url.Values{
		"login":  {c.config.Username},
		"pwd":    {c.config.Password},
		"action": {action},
		"format": {"1"},
	}
	return c.endpoint("/authentication") + "?" + q.Encode()
}

func (c *LegacyClient) endpoint(p string) string {
	return strings.TrimSuffix(c.config.BaseURL, "/") + p
}

// get fetches rawURL and decodes the XML body. The raw body is returned
// alongside so callers can report it.
func (c *LegacyClient) get(ctx context.Context, action, rawURL string) (*downloadArea, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", action, err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: read response: %w", action, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, body, statusError(action, "resource", rawURL, resp, body)
	}

	var area downloadArea
	if err := readXML(bytes.NewReader(body), &area); err != nil {
		return nil, body, &APIError{
			Action:     action,
			StatusCode: resp.StatusCode,
			Status:     fmt.Sprintf("%s (invalid XML: %v)", resp.Status, err),
			Body:       body,
		}
	}
	return &area, body, nil
}

// Authenticate logs in and keeps the session cookie.
func (c *LegacyClient) Authenticate(ctx context.Context) error {
	const action = "connect"

	c.logger.DebugContext(ctx, "connecting", "url", c.endpoint("/authentication"), "user", c.config.Username)

	area, body, err := c.get(ctx, action, c.authURL(legacyConnect))
	if err != nil {
		return err
	}
	if area.Authentication == nil || area.Authentication.Authenticated != "true" {
		return &AuthError{Action: action, StatusCode: http.StatusOK, Message: string(body)}
	}

	c.authenticated = true
	c.logger.InfoContext(ctx, "authenticated", "api", APILegacy, "user", c.config.Username)
	return nil
}

// ListProducts returns the products visible to the session.
func (c *LegacyClient) ListProducts(ctx context.Context) ([]*Product, error) {
	area, _, err := c.get(ctx, "list products", c.endpoint("/products"))
	if err != nil {
		return nil, err
	}

	result := make([]*Product, len(area.Products))
	for i, p := range area.Products {
		result[i] = &Product{
			ID:   path.Base(p.URL),
			Name: p.Name,
			URL:  p.URL,
		}
	}
	return result, nil
}

// GetLatestDelivery follows product -> editions -> edition -> files. The
// service lists the current edition first.
func (c *LegacyClient) GetLatestDelivery(ctx context.Context, product *Product) (*Delivery, error) {
	if product.URL == "" {
		return nil, fmt.Errorf("product %q has no url", product.Name)
	}

	area, _, err := c.get(ctx, "list editions", strings.TrimSuffix(product.URL, "/")+"/editions")
	if err != nil {
		return nil, err
	}
	if len(area.Editions) == 0 {
		return nil, &NotFoundError{Resource: "edition", ID: product.Name}
	}
	edition := area.Editions[0]

	area, _, err = c.get(ctx, "get edition", edition.URL)
	if err != nil {
		return nil, err
	}
	if area.Edition == nil || area.Edition.FilesURL == "" {
		return nil, &NotFoundError{Resource: "files-url", ID: edition.URL}
	}

	area, _, err = c.get(ctx, "list files", area.Edition.FilesURL)
	if err != nil {
		return nil, err
	}

	delivery := &Delivery{
		ID:        path.Base(edition.URL),
		ProductID: product.ID,
		Name:      edition.Version,
		Version:   normalizeVersion(edition.Version),
		Files:     make([]*DeliveryFile, len(area.Files)),
	}
	for i, f := range area.Files {
		name := f.Name
		if name == "" {
			name = path.Base(f.URL)
		}
		delivery.Files[i] = &DeliveryFile{
			ID:         name,
			ProductID:  product.ID,
			DeliveryID: delivery.ID,
			Name:       name,
			Size:       f.Size,
			Checksum:   f.Checksum,
			URL:        f.URL,
		}
	}
	return delivery, nil
}

// DownloadFile streams the file at file.URL into dst.
func (c *LegacyClient) DownloadFile(ctx context.Context, file *DeliveryFile, dst io.Writer, progressFn ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return fmt.Errorf("download %s: %w", file.Name, err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", file.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return statusError("download file", "file", file.URL, resp, body)
	}

	if err := copyBody(dst, resp, progressFn); err != nil {
		return fmt.Errorf("download %s: %w", file.Name, err)
	}
	return nil
}

// Close disconnects the session. It is a no-op unless Authenticate succeeded.
func (c *LegacyClient) Close(ctx context.Context) error {
	if !c.authenticated {
		return nil
	}
	c.authenticated = false
	defer c.httpClient.CloseIdleConnections()

	c.logger.DebugContext(ctx, "disconnecting", "url", c.endpoint("/authentication"))
	if _, _, err := c.get(ctx, "disconnect", c.authURL(legacyDisconnect)); err != nil {
		return err
	}
	return nil
}
