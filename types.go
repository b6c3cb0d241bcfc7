package patstat

import (
	"strings"
	"time"
)

// Product represents a dataset product offered by the catalog
type Product struct {
	ID          string
	Name        string
	Description string
	URL         string // legacy only: base URL of the product resource
}

// Delivery represents one dated edition of a product
type Delivery struct {
	ID                  string
	ProductID           string
	Name                string
	Version             string // normalised edition identifier, used as the local directory name
	PublicationDatetime time.Time
	ExpiryDatetime      *time.Time
	Files               []*DeliveryFile
}

// DeliveryFile represents one downloadable archive of a delivery
type DeliveryFile struct {
	ID                  string
	ProductID           string
	DeliveryID          string
	Name                string
	Size                string
	Checksum            string
	PublicationDatetime time.Time
	URL                 string // legacy only: absolute download URL
}

// normalizeVersion turns an edition label into a directory name.
func normalizeVersion(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
}

// editionFromName keeps the last two whitespace-separated tokens of a
// delivery name, e.g. "PATSTAT Global 2024 Autumn" -> "2024_Autumn".
func editionFromName(name string) string {
	fields := strings.Fields(name)
	if len(fields) > 2 {
		fields = fields[len(fields)-2:]
	}
	return strings.Join(fields, "_")
}
