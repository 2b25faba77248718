package users

type MeResponse struct {
	User          UserDTO          `json:"user"`
	Payouts       PayoutsDTO       `json:"payouts"`
	Notifications NotificationsDTO `json:"notifications"`
}

type UserDTO struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// PayoutsDTO mirrors the connected-account state kept current by account.updated.
type PayoutsDTO struct {
	AccountConnected bool `json:"account_connected"`
	Enabled          bool `json:"enabled"`
}

type NotificationsDTO struct {
	Unread int64 `json:"unread"`
}
