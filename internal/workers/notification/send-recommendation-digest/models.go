// internal/workers/notification/send-recommendation-digest/models.go
package sendrecommendationdigest

type Recommendation struct {
	Title         string  `json:"title"`
	Year          int     `json:"year"`
	Score         float64 `json:"score"`
	Justification string  `json:"justification,omitempty"`
}

type Input struct {
	UserID          string           `json:"userId"`
	Email           string           `json:"email,omitempty"`
	PhoneNumber     string           `json:"phoneNumber,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
}

const (
	StatusSent     = "SENT"
	StatusDisabled = "DISABLED"
)

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
	EmailSent      bool   `json:"emailSent"`
	SMSSent        bool   `json:"smsSent"`
	SentAt         string `json:"sentAt"`
}
