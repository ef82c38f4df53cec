package entity

type Product struct {
	ID                 int                 `json:"id"`
	Name               string              `json:"name"`
	Metric             string              `json:"metric"`
	Lots               []Lot               `json:"lots"`
	ApplicationMethods []ApplicationMethod `json:"application_methods"`
	UpdatedAt          string              `json:"updated_at"`
}

type Lot struct {
	ID     int    `json:"id"`
	Number string `json:"number"`
}

type ApplicationMethod struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Pest struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
