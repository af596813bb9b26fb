package orders

import (
	"time"

	"github.com/google/uuid"
)

type Order struct {
	ID              uuid.UUID     `json:"id"`
	UserID          uuid.UUID     `json:"userId"`
	Items           []OrderItem   `json:"items"`
	TotalCents      int64         `json:"totalAmount"`
	Status          Status        `json:"status"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	ShippingAddress string        `json:"shippingAddress"`
	Phone           string        `json:"phone"`
	Notes           string        `json:"notes"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`

	// Buyer fields are populated on admin listings only.
	BuyerName  string `json:"buyerName,omitempty"`
	BuyerEmail string `json:"buyerEmail,omitempty"`
}

type OrderItem struct {
	ProductID  uuid.UUID `json:"productId"`
	Qty        int       `json:"quantity"`
	PriceCents int64     `json:"pricePerUnit"`

	// Display fields, populated when listings expand product refs.
	ProductName  string  `json:"productName,omitempty"`
	ProductImage *string `json:"productImage,omitempty"`
}

// CartItem is what the client submits.
type CartItem struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// Total recomputes the amount owed from the items. Stored totals must
// always equal this sum.
func (o Order) Total() int64 {
	var sum int64
	for _, it := range o.Items {
		sum += int64(it.Qty) * it.PriceCents
	}
	return sum
}
