package domain

// User is the identity record read by the auth path. This subsystem only reads
// users; their lifecycle is owned elsewhere. JSON tags match the serialized
// form projected into the read-through cache.
type User struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	Username *string `json:"username,omitempty"`
}
