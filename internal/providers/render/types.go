package render

// Status is the rendering service's view of a collection.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Modification fills one named template slot with text or an image URL.
type Modification struct {
	Name     string `json:"name"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// CreateCollectionRequest is the batch submission payload.
type CreateCollectionRequest struct {
	TemplateSet   string         `json:"template_set"`
	Modifications []Modification `json:"modifications"`
	WebhookURL    string         `json:"webhook_url,omitempty"`
	Metadata      string         `json:"metadata,omitempty"`
}

// RenderedImage is one output of a collection.
type RenderedImage struct {
	TemplateName string `json:"template_name"`
	ImageURL     string `json:"image_url"`
	Status       Status `json:"status"`
}

// Collection is the service's representation of a batch request.
type Collection struct {
	UID          string            `json:"uid"`
	Status       Status            `json:"status"`
	ImageURLs    map[string]string `json:"image_urls,omitempty"`
	Images       []RenderedImage   `json:"images,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

// CompletedImages counts per-image completion when the service reports it.
// Returns (0, 0) when no per-image detail is available.
func (c *Collection) CompletedImages() (completed, total int) {
	total = len(c.Images)
	for _, img := range c.Images {
		if img.Status == StatusCompleted {
			completed++
		}
	}
	return completed, total
}
