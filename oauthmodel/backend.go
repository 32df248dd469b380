package oauthmodel

// LoginRequest is POSTed to the backend /login route.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the body of a successful /login call.
type LoginResponse struct {
	// Token is the short-lived bearer credential.
	Token string `json:"token"`

	// RefreshToken is the long-lived credential exchanged at /refresh. Optional.
	RefreshToken string `json:"refreshToken,omitempty"`

	// Username is the display name. Note the lower-case "n", unlike the register request.
	Username string `json:"username"`
}

// RegisterRequest is POSTed to the backend /register route. Only the status of the response is used.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	UserName string `json:"userName" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is POSTed to the backend /refresh route.
// The response is read with paths rather than a struct because the token (and optional userName)
// may be at the root or nested under "data".
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Response paths tried, in order, when reading a /refresh response.
var (
	RefreshTokenPaths    = []string{"token", "data.token"}
	RefreshUserNamePaths = []string{"userName", "data.userName"}
)
