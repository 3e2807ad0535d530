package auth

// DevAuthRequest — запрос на dev-авторизацию
type DevAuthRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// DevAuthResponse — ответ на dev-авторизацию
type DevAuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
}

// Identity — данные из проверенного токена
type Identity struct {
	UserID string
	Role   string
}

// ErrorResponse — формат ошибки
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
