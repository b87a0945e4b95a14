package marketplace

import "time"

// Item is something an expert sells.
type Item struct {
	ID          string    `json:"id" db:"id"`
	ExpertID    string    `json:"expert_id" db:"expert_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Price       float64   `json:"price" db:"price"`
	ItemType    string    `json:"item_type" db:"item_type"`
	MediaURL    string    `json:"media_url,omitempty" db:"media_url"`
	MediaType   string    `json:"media_type,omitempty" db:"media_type"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Testimonial is media vouching for an expert.
type Testimonial struct {
	ID        string    `json:"id" db:"id"`
	ExpertID  string    `json:"expert_id" db:"expert_id"`
	MediaURL  string    `json:"media_url" db:"media_url"`
	MediaType string    `json:"media_type" db:"media_type"`
	VideoURL  string    `json:"video_url,omitempty" db:"video_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
