package domain

// HostedAsset is one of the fixed image resources the operator serves.
// URL doubles as a hint of where the file must be placed on the server.
type HostedAsset struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	URL         string `json:"url" yaml:"url"`
	DisplayTag  string `json:"display_tag" yaml:"display_tag"` // visual only
}

// DefaultAssets returns the reference asset set.
func DefaultAssets() []HostedAsset {
	return []HostedAsset{
		{
			ID:          "cover-image",
			Name:        "App cover",
			Description: "File: /cover-card.png (must be in the public directory)",
			URL:         "/cover-card.png",
			DisplayTag:  "emerald",
		},
		{
			ID:          "donate-qr",
			Name:        "Donation QR code",
			Description: "File: /donate-qrcode1.png (must be in the public directory)",
			URL:         "/donate-qrcode1.png",
			DisplayTag:  "amber",
		},
		{
			ID:          "rituxi-avatar",
			Name:        "Profile avatar",
			Description: "File: /Rituxi1.png (must be in the public directory)",
			URL:         "/Rituxi1.png",
			DisplayTag:  "purple",
		},
	}
}
