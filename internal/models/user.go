package models

// User is a set of controller credentials. Token wins over the password when both are set.
type User struct {
	ID       int    `json:"id,omitempty"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

func (u User) IsZero() bool {
	return u.Username == "" && u.Password == "" && u.Token == ""
}

// Credentials are the persisted login of the CLI against one controller.
type Credentials struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Token    string `json:"token"`
}
