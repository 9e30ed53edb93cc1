package domain

type CompanyCandidate struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	Offset     int    `json:"offset"`
}

// RegistryCompany is one row of the reference company directory.
type RegistryCompany struct {
	CIK    string `json:"cik"`
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

type ResolvedCompany struct {
	Identifier string  `json:"identifier"`
	Ticker     string  `json:"ticker"`
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
}
