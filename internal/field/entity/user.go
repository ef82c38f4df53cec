package entity

// User is the authenticated technician profile returned by the login
// endpoint and persisted across restarts (document userData).
type User struct {
	UserID   int    `json:"userId"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Token    string `json:"token"`
}
