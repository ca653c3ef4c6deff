// Package search runs FOFA queries against the FOFA search API and normalises the rows it
// returns into typed asset records.
package search

import "encoding/json"

// Fields is the fixed projection requested from FOFA. Row positions follow this order.
const Fields = "ip,port,title,host"

// AssetRecord is one normalised FOFA result row. Missing values are empty strings.
type AssetRecord struct {
	IP    string `json:"ip" yaml:"ip"`
	Port  string `json:"port" yaml:"port"`
	Title string `json:"title" yaml:"title"`
	Host  string `json:"host" yaml:"host"`
}

// SearchResult is a page of records together with the metadata FOFA reports for it
type SearchResult struct {
	Records        []AssetRecord `json:"records"`
	Total          int           `json:"total"`
	Page           int           `json:"page"`
	Mode           string        `json:"mode,omitempty"`
	Query          string        `json:"query,omitempty"`
	ConsumedFpoint int           `json:"consumed_fpoint,omitempty"`
}

// apiResponse is the body returned by /api/v1/search/all. Each result row is an array of
// values, or the bare value when a single field is requested.
type apiResponse struct {
	Error          bool              `json:"error"`
	ErrMsg         string            `json:"errmsg"`
	Mode           string            `json:"mode"`
	Page           int               `json:"page"`
	Query          string            `json:"query"`
	Size           int               `json:"size"`
	ConsumedFpoint int               `json:"consumed_fpoint"`
	Results        []json.RawMessage `json:"results"`
}
