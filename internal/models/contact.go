package models

// Contact is the display profile resolved from the external subject
// directory. Purely advisory; ingestion never depends on it.
type Contact struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
}
