package domain

// ContactSubmission is the decoded contact form body. StartedAt is the Unix
// millisecond timestamp at which the browser rendered the form.
type ContactSubmission struct {
	Name           string `json:"name" validate:"min=2,max=80,safe"`
	Email          string `json:"email" validate:"required,email,safe"`
	Message        string `json:"message" validate:"min=10,max=500,safe"`
	CompanyWebsite string `json:"companyWebsite"`
	StartedAt      int64  `json:"startedAt" validate:"gt=0"`
}

const (
	InquirySource = "jertinetech-website"
	InquiryType   = "contact_inquiry"
)

// InquiryPayload is the body forwarded to the notification webhook. Field
// order is the serialized order.
type InquiryPayload struct {
	Source       string `json:"source"`
	Type         string `json:"type"`
	SubmissionID string `json:"submissionId"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Message      string `json:"message"`
	ReceivedAt   string `json:"receivedAt"`
	RateKey      string `json:"rateKey"`
}
