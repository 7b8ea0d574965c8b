package checkout

import "time"

type State string

const (
	StateCreated             State = "created"
	StateInitiated           State = "initiated"
	StatePendingVerification State = "pending-verification"
	StateConfirmed           State = "confirmed"
	StateFailed              State = "failed"
)

const (
	MethodCOD    = "cod"
	MethodKhalti = "khalti"
)

// Reverifiable reports whether a failed attempt got as far as the payment
// page, so asking the provider again may still find it paid.
func (a *Attempt) Reverifiable() bool {
	return a.State == StateFailed && a.Method == MethodKhalti && a.PaymentURL != ""
}

// Attempt is one checkout submission and the payment that follows it.
type Attempt struct {
	ID             string    `gorm:"primaryKey;size:36"                     json:"id"`
	DeviceID       string    `gorm:"size:64;not null;uniqueIndex:idx_attempt_device_key" json:"-"`
	IdempotencyKey string    `gorm:"size:64;not null;uniqueIndex:idx_attempt_device_key" json:"-"`
	OrderID        string    `gorm:"size:64;index"                          json:"orderId,omitempty"`
	Method         string    `gorm:"size:16;not null"                       json:"method"`
	State          State     `gorm:"size:32;not null;index"                 json:"state"`
	Amount         float64   `gorm:"not null"                               json:"amount"`
	DeliveryFee    float64   `gorm:"not null;default:0"                     json:"deliveryFee"`
	PaymentURL     string    `gorm:"type:text"                              json:"paymentUrl,omitempty"`
	Pidx           string    `gorm:"size:128"                               json:"-"`
	FailureReason  string    `gorm:"type:text"                              json:"failureReason,omitempty"`
	CreatedAt      time.Time `gorm:"not null"                               json:"createdAt"`
	UpdatedAt      time.Time `gorm:"not null"                               json:"updatedAt"`
}

func (Attempt) TableName() string { return "checkout_attempts" }

type ShippingInfo struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city,omitempty"`
	Notes    string `json:"notes,omitempty"`
}
