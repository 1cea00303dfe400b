package models

// MenuItem is one entry of the client navigation menu served by /app/config.
type MenuItem struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Endpoint     string `json:"endpoint"`
	AuthRequired bool   `json:"auth_required"`
}
