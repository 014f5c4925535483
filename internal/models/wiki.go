package models

import "time"

// WikiPage is one page fetched from the wiki space.
type WikiPage struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Excerpt   string    `json:"excerpt"`
	URL       string    `json:"url"`
	Author    string    `json:"author"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	SpaceKey  string    `json:"space_key"`
}
