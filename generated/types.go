// Package generated provides primitives to interact with the EPO BDDS HTTP API.
package generated

import "time"

// Product defines model for Product.
type Product struct {
	Description string `json:"description"`
	Id          int    `json:"id"`
	Name        string `json:"name"`
}

// ProductWithDeliveries defines model for ProductWithDeliveries.
type ProductWithDeliveries struct {
	Deliveries  []Delivery `json:"deliveries"`
	Description string     `json:"description"`
	Id          int        `json:"id"`
	Name        string     `json:"name"`
}

// Delivery defines model for Delivery.
type Delivery struct {
	DeliveryExpiryDatetime      *time.Time     `json:"deliveryExpiryDatetime"`
	DeliveryId                  int            `json:"deliveryId"`
	DeliveryName                string         `json:"deliveryName"`
	DeliveryPublicationDatetime time.Time      `json:"deliveryPublicationDatetime"`
	Files                       []DeliveryFile `json:"files"`
}

// DeliveryFile defines model for DeliveryFile.
type DeliveryFile struct {
	FileChecksum            string    `json:"fileChecksum"`
	FileId                  int       `json:"fileId"`
	FileName                string    `json:"fileName"`
	FilePublicationDatetime time.Time `json:"filePublicationDatetime"`
	FileSize                string    `json:"fileSize"`
}

// TokenResponse defines model for TokenResponse.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
	IdToken     string `json:"id_token,omitempty"`
	Scope       string `json:"scope,omitempty"`
	TokenType   string `json:"token_type"`
}
