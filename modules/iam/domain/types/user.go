package types

type User struct {
	ID         int64   `json:"id"`
	EmployeeNo *string `json:"employeeNo"`
	Name       string  `json:"name"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	JobTitle   *string `json:"jobTitle"`
	Grade      *string `json:"grade"`
	Active     bool    `json:"active"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
}

func (u User) EntityID() int64 { return u.ID }

// UserPatch fields left nil are untouched. A pointer to "" clears an
// optional field.
type UserPatch struct {
	Name       *string
	EmployeeNo *string
	Email      *string
	Phone      *string
	JobTitle   *string
	Grade      *string
	Active     *bool
}

type UserPage struct {
	Items  []User `json:"items"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}
