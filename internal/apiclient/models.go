package apiclient

import (
	"bytes"
	"encoding/json"
	"time"
)

const (
	OrderPending    = "pending"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
)

var OrderStatuses = []string{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled}

func ValidOrderStatus(s string) bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Category arrives either as a bare name/id or as a populated document.
type Category struct {
	ID   string `json:"_id,omitempty"`
	Name string `json:"name,omitempty"`
}

func (c *Category) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Category{ID: s, Name: s}
		return nil
	}
	type plain Category
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*c = Category(p)
	return nil
}

type Product struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Category    Category  `json:"category"`
	Stock       int       `json:"stock"`
	Unit        string    `json:"unit,omitempty"`
	Image       string    `json:"image,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// ProductRef is a product field that may hold only the id.
type ProductRef struct {
	Product
}

func (r *ProductRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		r.Product = Product{ID: id}
		return nil
	}
	return json.Unmarshal(b, &r.Product)
}

func (r ProductRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Product)
}

type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// UnmarshalJSON accepts {product, quantity} and the flattened product with a
// quantity field.
func (ci *CartItem) UnmarshalJSON(b []byte) error {
	var nested struct {
		Product  json.RawMessage `json:"product"`
		Quantity int             `json:"quantity"`
	}
	if err := json.Unmarshal(b, &nested); err != nil {
		return err
	}
	ci.Quantity = nested.Quantity

	raw := bytes.TrimSpace(nested.Product)
	if len(raw) > 0 && raw[0] == '{' {
		return json.Unmarshal(raw, &ci.Product)
	}
	var ref ProductRef
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &ref); err != nil {
			return err
		}
		ci.Product = ref.Product
		return nil
	}
	return json.Unmarshal(b, &ci.Product)
}

func (ci CartItem) Subtotal() float64 {
	return ci.Product.Price * float64(ci.Quantity)
}

type OrderItem struct {
	ID       string     `json:"_id,omitempty"`
	Product  ProductRef `json:"product"`
	Quantity int        `json:"quantity"`
	Price    float64    `json:"price"`
	Reviewed bool       `json:"reviewed,omitempty"`
}

type Order struct {
	ID              string      `json:"_id"`
	User            any         `json:"user,omitempty"`
	Items           []OrderItem `json:"items"`
	ShippingAddress string      `json:"shippingAddress"`
	Phone           string      `json:"phone"`
	City            string      `json:"city"`
	PaymentMethod   string      `json:"paymentMethod"`
	Status          string      `json:"status"`
	Total           float64     `json:"total"`
	CreatedAt       time.Time   `json:"createdAt"`
}

func (o *Order) Item(id string) (OrderItem, bool) {
	for _, it := range o.Items {
		if it.ID == id || it.Product.ID == id {
			return it, true
		}
	}
	return OrderItem{}, false
}

type Review struct {
	ID        string     `json:"_id"`
	Product   ProductRef `json:"product"`
	Order     string     `json:"order,omitempty"`
	User      any        `json:"user,omitempty"`
	Rating    int        `json:"rating"`
	Comment   string     `json:"comment"`
	Image     string     `json:"image,omitempty"`
	Visible   bool       `json:"visible"`
	CreatedAt time.Time  `json:"createdAt"`
}

type User struct {
	ID         string    `json:"_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	Avatar     string    `json:"avatar,omitempty"`
	IsActive   bool      `json:"isActive"`
	IsVerified bool      `json:"isVerified,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

type DashboardStats struct {
	Users struct {
		Total  int `json:"total"`
		Active int `json:"active"`
	} `json:"users"`
	Products struct {
		Total      int `json:"total"`
		OutOfStock int `json:"outOfStock"`
	} `json:"products"`
	Orders struct {
		Total        int     `json:"total"`
		TotalRevenue float64 `json:"totalRevenue"`
		Pending      int     `json:"pending"`
	} `json:"orders"`
	RecentOrders []Order `json:"recentOrders"`
}
