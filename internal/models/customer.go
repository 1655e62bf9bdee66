package models

type Customer struct {
	ID       ID     `json:"customer_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}
