package dto

// ListFilter contains query parameters for the company directory listing.
type ListFilter struct {
	Q        string
	Sector   string
	IsTarget *bool
	Page     int
	PerPage  int
}

// ImportSummary reports what a bulk import did with each row.
type ImportSummary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}
