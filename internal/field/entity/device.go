package entity

// Device is a physical inspection/bait station within a service.
// Devices sharing a control point are interchangeable inspection points and
// are the replication targets of auto-review.
type Device struct {
	ID           int          `json:"id"`
	NPlan        int          `json:"nplan"`
	Code         *string      `json:"code"`
	Area         Area         `json:"area"`
	ControlPoint ControlPoint `json:"control_point"`
	Floorplan    Floorplan    `json:"floorplan"`
	Questions    []Question   `json:"questions"`
}

type Area struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type ControlPoint struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type Floorplan struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ServiceName string `json:"service_name"`
}

type Question struct {
	ID       int    `json:"id"`
	Question string `json:"question"`
}
