package dto

// VerifyUserRequest carries the raw init data string from the Mini App.
type VerifyUserRequest struct {
	InitData string `json:"init_data"`
}

// TelegramUserData is a verified Telegram profile.
type TelegramUserData struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// VerifyUserResponse answers POST /mini-app/verify-user.
type VerifyUserResponse struct {
	Verified       bool              `json:"verified"`
	TelegramUserID int64             `json:"telegram_user_id"`
	Message        string            `json:"message"`
	UserData       *TelegramUserData `json:"user_data,omitempty"`
	Token          string            `json:"token,omitempty"`
}

// SearchUsersRequest is posted to /mini-app/search-users.
type SearchUsersRequest struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// SearchUsersResponse is one page of search results.
type SearchUsersResponse struct {
	Results []TelegramUserData `json:"results"`
	Total   int                `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
}
