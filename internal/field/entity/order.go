package entity

// Order status values used by the Zonda backend.
const (
	OrderStatusPending   = 1
	OrderStatusCompleted = 3
)

// Order is a scheduled customer engagement. It is created server-side and
// read-only on the device except for the status correction applied while
// merging with local reports.
type Order struct {
	ID                 int       `json:"id"`
	Folio              string    `json:"folio"`
	StatusID           int       `json:"status_id"`
	StartTime          *string   `json:"start_time"`
	ProgrammedDate     string    `json:"programmed_date"`
	Address            string    `json:"address"`
	Execution          *string   `json:"execution"`
	Areas              []string  `json:"areas"`
	AdditionalComments *string   `json:"additional_comments"`
	Price              float64   `json:"price"`
	Signature          *string   `json:"signature"`
	UpdatedAt          string    `json:"updated_at"`
	ServiceType        string    `json:"service_type"`
	Customer           Customer  `json:"customer"`
	Services           []Service `json:"services"`

	// Stamped when the order is upserted into the history collection.
	LastUpdated string `json:"lastUpdated,omitempty"`
}

type Customer struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Email         string `json:"email,omitempty"`
	RFC           string `json:"rfc,omitempty"`
	ContactPerson string `json:"contact_person,omitempty"`
	MapURL        string `json:"map_url,omitempty"`
}

// Service is a unit of pest-control work within an Order. Prefix == 1 flags
// a service whose completion is tracked per-device rather than per-product.
type Service struct {
	ID                 int                 `json:"id"`
	Prefix             int                 `json:"prefix"`
	Name               string              `json:"name"`
	Description        string              `json:"description,omitempty"`
	Pests              []Pest              `json:"pests"`
	Products           []Product           `json:"products"`
	ApplicationMethods []ApplicationMethod `json:"application_methods"`
	Devices            []Device            `json:"devices"`
	Quantity           int                 `json:"quantity,omitempty"`
	Frequency          string              `json:"frequency,omitempty"`
}

// PerDevice reports whether completion of this service is defined by device
// reviews instead of product applications.
func (s Service) PerDevice() bool {
	return s.Prefix == 1
}

// FindDevice returns the device with the given id, or nil.
func (s Service) FindDevice(deviceID int) *Device {
	for i := range s.Devices {
		if s.Devices[i].ID == deviceID {
			return &s.Devices[i]
		}
	}
	return nil
}

// OrderCache is the per-user-per-date cached order listing
// (document orders_<userId>_<YYYY-MM-DD>).
type OrderCache struct {
	Data        []Order `json:"data"`
	LastUpdated string  `json:"lastUpdated"`
}

// ActiveOrder marks the order currently being worked so the UI can warn the
// technician before starting a second one.
type ActiveOrder struct {
	OrderID    int    `json:"order_id"`
	OrderFolio string `json:"order_folio"`
	Time       string `json:"time"`
}
