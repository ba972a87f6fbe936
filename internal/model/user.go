package model

import "time"

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CityID    string    `json:"cityId,omitempty"`
	IsMaster  bool      `json:"isMaster"`
	CreatedAt time.Time `json:"createdAt"`
}

// MasterProfile extends a user who offers services
type MasterProfile struct {
	UserID   string  `json:"userId"`
	About    string  `json:"about,omitempty"`
	Skills   []Skill `json:"skills,omitempty"`
	Rating   float64 `json:"rating"`
	Reviews  int     `json:"reviews"`
	Verified bool    `json:"verified"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	IsMaster bool   `json:"isMaster"`
}

type UpdateProfileParams struct {
	Name      *string `json:"name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	CityID    *string `json:"cityId,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

type UpdateMasterParams struct {
	About    *string  `json:"about,omitempty"`
	SkillIDs []string `json:"skillIds,omitempty"`
}
