package patstat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/patent-dev/patstat-get/generated"
)

const (
	defaultBaseURL  = "https://publication-bdds.apps.epo.org"
	defaultTokenURL = "https://login.epo.org/oauth2/aus3up3nz0N133c0V417/v1/token"
	// Public client identity of the BDDS web frontend, sent as Basic auth
	clientID = "MG9hM3VwZG43YW41cE1JOE80MTc="

	apiPath = "/bdds/bdds-bff-service/prod/api"
)

// Client is the EPO BDDS API client (OAuth2 token, JSON responses)
type Client struct {
	config          *Config
	httpClient      *http.Client
	tokenType       string
	token           string
	generatedClient *generated.ClientWithResponses
	logger          *slog.Logger
}

// Config holds client configuration
type Config struct {
	API       API    // Protocol variant (default: APIBDDS)
	Username  string // EPO username
	Password  string // EPO password
	BaseURL   string // Base URL for API (default depends on API)
	TokenURL  string // OAuth2 token endpoint, BDDS only
	UserAgent string // Optional custom user agent
	Timeout   int    // Request timeout in seconds (default: none)
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		API:       APIBDDS,
		BaseURL:   defaultBaseURL,
		TokenURL:  defaultTokenURL,
		UserAgent: "PatentDev/PATSTAT/1.0",
	}
}

// NewClient creates a new EPO BDDS API client.
// Authentication is optional - free products work without credentials,
// PATSTAT requires a subscription and therefore credentials.
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	// Apply defaults
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
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

	client := &Client{
		config:     config,
		httpClient: httpClient,
		logger:     o.logger,
	}

	// Create generated client with request editor that adds auth
	genClient, err := generated.NewClientWithResponses(
		strings.TrimSuffix(config.BaseURL, "/")+apiPath,
		generated.WithHTTPClient(httpClient),
		generated.WithRequestEditorFn(client.authRequestEditor),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	client.generatedClient = genClient

	return client, nil
}

// authRequestEditor adds authentication and user agent to requests
func (c *Client) authRequestEditor(ctx context.Context, req *http.Request) error {
	if err := c.ensureToken(ctx); err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.tokenType+" "+c.token)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	return nil
}

// ensureToken authenticates on first use when credentials are configured.
// The token is never refreshed: a run is expected to finish before it expires.
func (c *Client) ensureToken(ctx context.Context) error {
	if c.token != "" || c.config.Username == "" || c.config.Password == "" {
		return nil
	}
	return c.Authenticate(ctx)
}

// Authenticate performs OAuth2 password grant authentication
func (c *Client) Authenticate(ctx context.Context) error {
	const action = "get access token"

	data := url.Values{
		"grant_type": {"password"},
		"username":   {c.config.Username},
		"password":   {c.config.Password},
		"scope":      {"openid"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}

	req.Header.Set("Authorization", "Basic "+clientID)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.config.UserAgent)

	c.logger.DebugContext(ctx, "requesting access token", "url", c.config.TokenURL, "user", c.config.Username)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &AuthError{
			Action:     action,
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	var tokenResp generated.TokenResponse
	if err := readJSON(resp.Body, &tokenResp); err != nil {
		return fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return &AuthError{Action: action, StatusCode: resp.StatusCode, Message: "no access_token in response"}
	}

	c.tokenType = tokenResp.TokenType
	if c.tokenType == "" {
		c.tokenType = "Bearer"
	}
	c.token = tokenResp.AccessToken

	c.logger.InfoContext(ctx, "authenticated", "api", APIBDDS, "user", c.config.Username)
	return nil
}

// ListProducts returns all available BDDS products
func (c *Client) ListProducts(ctx context.Context) ([]*Product, error) {
	resp, err := c.generatedClient.ListProductsWithResponse(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, statusError("list products", "products", "", resp.HTTPResponse, resp.Body)
	}

	if resp.JSON200 == nil {
		return nil, fmt.Errorf("list products: empty response body")
	}

	result := make([]*Product, len(*resp.JSON200))
	for i, p := range *resp.JSON200 {
		result[i] = &Product{
			ID:          strconv.Itoa(p.Id),
			Name:        p.Name,
			Description: p.Description,
		}
	}
	return result, nil
}

// ProductWithDeliveries represents a product with its deliveries
type ProductWithDeliveries struct {
	Product
	Deliveries []*Delivery
}

// GetProduct returns detailed information about a specific product including deliveries
func (c *Client) GetProduct(ctx context.Context, productID int) (*ProductWithDeliveries, error) {
	id := strconv.Itoa(productID)

	resp, err := c.generatedClient.GetProductWithResponse(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, statusError("get product", "product", id, resp.HTTPResponse, resp.Body)
	}

	if resp.JSON200 == nil {
		return nil, fmt.Errorf("get product %d: empty response body", productID)
	}

	p := resp.JSON200
	result := &ProductWithDeliveries{
		Product: Product{
			ID:          id,
			Name:        p.Name,
			Description: p.Description,
		},
		Deliveries: make([]*Delivery, len(p.Deliveries)),
	}

	for i, d := range p.Deliveries {
		deliveryID := strconv.Itoa(d.DeliveryId)
		delivery := &Delivery{
			ID:                  deliveryID,
			ProductID:           id,
			Name:                d.DeliveryName,
			Version:             editionFromName(d.DeliveryName),
			PublicationDatetime: d.DeliveryPublicationDatetime,
			ExpiryDatetime:      d.DeliveryExpiryDatetime,
			Files:               make([]*DeliveryFile, len(d.Files)),
		}

		for j, f := range d.Files {
			delivery.Files[j] = &DeliveryFile{
				ID:                  strconv.Itoa(f.FileId),
				ProductID:           id,
				DeliveryID:          deliveryID,
				Name:                f.FileName,
				Size:                f.FileSize,
				Checksum:            f.FileChecksum,
				PublicationDatetime: f.FilePublicationDatetime,
			}
		}

		result.Deliveries[i] = delivery
	}

	return result, nil
}

// GetLatestDelivery returns the most recent delivery for a product
func (c *Client) GetLatestDelivery(ctx context.Context, product *Product) (*Delivery, error) {
	productID, err := strconv.Atoi(product.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid product id %q: %w", product.ID, err)
	}

	full, err := c.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	latest := latestDelivery(full.Deliveries)
	if latest == nil {
		return nil, &NotFoundError{
			Resource: "delivery",
			ID:       fmt.Sprintf("product %d has no deliveries", productID),
		}
	}
	return latest, nil
}

// latestDelivery sorts a copy of deliveries by publication date, newest
// first, and returns the head. The sort is stable, so deliveries published
// at the same instant keep their listed order.
func latestDelivery(deliveries []*Delivery) *Delivery {
	if len(deliveries) == 0 {
		return nil
	}
	sorted := make([]*Delivery, len(deliveries))
	copy(sorted, deliveries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublicationDatetime.After(sorted[j].PublicationDatetime)
	})
	return sorted[0]
}

// DownloadFile downloads a file to the provided writer with optional progress callback
func (c *Client) DownloadFile(ctx context.Context, file *DeliveryFile, dst io.Writer, progressFn ProgressFunc) error {
	productID, deliveryID, fileID, err := fileIDs(file)
	if err != nil {
		return err
	}

	resp, err := c.generatedClient.DownloadFile(ctx, productID, deliveryID, fileID)
	if err != nil {
		return fmt.Errorf("download %s: %w", file.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return statusError("download file", "file", fmt.Sprintf("%d/%d/%d", productID, deliveryID, fileID), resp, body)
	}

	if err := copyBody(dst, resp, progressFn); err != nil {
		return fmt.Errorf("download %s: %w", file.Name, err)
	}
	return nil
}

// Close drops the token; the server keeps no session for it.
func (c *Client) Close(ctx context.Context) error {
	c.token = ""
	c.tokenType = ""
	c.httpClient.CloseIdleConnections()
	c.logger.DebugContext(ctx, "session closed", "api", APIBDDS)
	return nil
}

func fileIDs(file *DeliveryFile) (productID, deliveryID, fileID int, err error) {
	if productID, err = strconv.Atoi(file.ProductID); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid product id %q: %w", file.ProductID, err)
	}
	if deliveryID, err = strconv.Atoi(file.DeliveryID); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid delivery id %q: %w", file.DeliveryID, err)
	}
	if fileID, err = strconv.Atoi(file.ID); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid file id %q: %w", file.ID, err)
	}
	return productID, deliveryID, fileID, nil
}
