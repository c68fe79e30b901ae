package model

import "time"

// License is a persisted license key.
// IsUsed is flipped by the redemption process; this service never deletes records.
type License struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	IsUsed    bool      `json:"is_used"`
	CreatedAt time.Time `json:"created_at"`
}

// IssueLicensesRequest represents a request to generate a batch of keys.
// The upper bound depends on configuration and is checked by license.Issuer.
type IssueLicensesRequest struct {
	Count int `json:"count" validate:"required,min=1"`
}

// IssueLicensesResponse lists the keys committed by one issue call.
type IssueLicensesResponse struct {
	Keys  []string `json:"keys"`
	Count int      `json:"count"`
}

// LicenseListResponse is a page of license records.
type LicenseListResponse struct {
	Licenses []License `json:"licenses"`
	Total    int64     `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// LicenseFilter narrows license listings.
type LicenseFilter struct {
	UnusedOnly bool
	Limit      int
	Offset     int
}
