package auth

type ResponseLogin struct {
	Message string `json:"message,omitempty"`
}

type ResponseToken struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type ResponseTokenError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type ResponseTokenInfo struct {
	Active    bool   `json:"active"`
	ClientID  string `json:"client_id"`
	UserID    string `json:"sub"`
	TokenType string `json:"token_type"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
