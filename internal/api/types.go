// ABOUTME: Wire types for the chat backend REST API
// ABOUTME: Field names follow the backend's JSON (Mongo-style _id keys)

package api

// User is a chat account as returned by the backend. The same shape is used
// for the signed-in user and for roster contacts.
type User struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName,omitempty"`
	Email      string `json:"email,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// Message is one chat message. ID is empty until the server confirms it.
// CreatedAt is kept as the server sent it.
type Message struct {
	ID         string `json:"_id,omitempty"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text,omitempty"`
	Image      string `json:"image,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// HasContent reports whether the message carries text or an image.
func (m Message) HasContent() bool {
	return m.Text != "" || m.Image != ""
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Credentials is the body of POST /auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is what a successful login yields.
type LoginResult struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// ProfileUpdate is the body of PUT /auth/updateProfile. Empty fields are
// left unchanged by the server.
type ProfileUpdate struct {
	FullName   string `json:"fullName,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// SendRequest is the body of POST /message/send/:id.
type SendRequest struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}
