package entities

import "time"

type ConversionResult struct {
	Handle    string    `json:"handle"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	Size      int       `json:"size"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
}
