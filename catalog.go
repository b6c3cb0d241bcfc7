package patstat

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// API selects the protocol variant spoken by a Catalog.
type API string

const (
	// APIBDDS is the OAuth2/JSON Bulk Data Distribution Service.
	APIBDDS API = "bdds"
	// APILegacy is the XML, session-cookie raw-data service.
	APILegacy API = "legacy"
)

// DefaultProductName is the product the tool looks for.
const DefaultProductName = "PATSTAT Global"

// ProgressFunc receives the number of bytes written so far and the total
// size announced by the server (-1 when unknown).
type ProgressFunc func(bytesWritten, totalBytes int64)

// Catalog is an authenticated view of the remote distribution service.
// Both API variants implement it; each parses its own response shapes into
// the common Product, Delivery and DeliveryFile types.
type Catalog interface {
	// Authenticate establishes the session or token used by every later call.
	Authenticate(ctx context.Context) error
	// ListProducts returns the products visible to the credentials.
	ListProducts(ctx context.Context) ([]*Product, error)
	// GetLatestDelivery resolves the most recent delivery of product, with its files.
	GetLatestDelivery(ctx context.Context, product *Product) (*Delivery, error)
	// DownloadFile streams file into dst.
	DownloadFile(ctx context.Context, file *DeliveryFile, dst io.Writer, progressFn ProgressFunc) error
	// Close releases the session.
	Close(ctx context.Context) error
}

// NewCatalog returns the Catalog for config.API. An empty API means APIBDDS.
func NewCatalog(config *Config, opts ...Option) (Catalog, error) {
	if config == nil {
		config = DefaultConfig()
	}
	switch config.API {
	case "", APIBDDS:
		return NewClient(config, opts...)
	case APILegacy:
		return NewLegacyClient(config, opts...)
	default:
		return nil, fmt.Errorf("unknown API variant %q", config.API)
	}
}

// FindProduct returns the product whose name contains name. When several
// match, the last one listed wins.
func FindProduct(products []*Product, name string) (*Product, error) {
	var found *Product
	for _, p := range products {
		if strings.Contains(p.Name, name) {
			found = p
		}
	}
	if found == nil {
		return nil, &ForbiddenError{Product: name}
	}
	return found, nil
}
