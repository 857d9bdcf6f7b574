package user

type CreateUserRequest struct {
	ClerkID      string `json:"clerkId" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Username     string `json:"username" validate:"required,min=3,max=30"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	ImageURL     string `json:"imageUrl,omitempty"`
	ReferralCode string `json:"referralCode,omitempty"`
}

type UpdateProfileRequest struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
	Sport     string `json:"sport,omitempty"`
}
