package model

// Reference data fetched from the backend and treated as opaque.

type City struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Skill struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
