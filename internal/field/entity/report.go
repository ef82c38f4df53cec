package entity

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Report is the technician's full record of work against one Order.
// At most one Report exists per order_id in the persisted collection.
//
// is_finalized and is_synchronized form the lifecycle:
// not-finalized -> finalized-not-synced -> finalized-synced. A report with
// both flags set is locked; only Reopen may touch it.
type Report struct {
	OrderID           int     `json:"order_id"`
	UserID            *int    `json:"user_id"`
	StatusID          int     `json:"status_id,omitempty"`
	StartTime         string  `json:"start_time"`
	EndTime           *string `json:"end_time"`
	CompletedDate     *string `json:"completed_date"`
	Notes             *string `json:"notes"`
	CustomerSignature *string `json:"customer_signature"`
	SignatureName     *string `json:"signature_name"`

	Reviews  []Review        `json:"reviews"`
	Products []ProductReview `json:"products"`
	Pests    []PestReview    `json:"pests"`

	FinalizedAt    string `json:"finalized_at,omitempty"`
	ReopenedAt     string `json:"reopened_at,omitempty"`
	SynchronizedAt string `json:"synchronized_at,omitempty"`

	IsFinalized    bool `json:"is_finalized"`
	IsSynchronized bool `json:"is_synchronized"`
}

// NewReport builds a blank report with the defaults every create-if-absent
// path relies on.
func NewReport(orderID int, userID *int, startTime string) Report {
	return Report{
		OrderID:   orderID,
		UserID:    userID,
		StartTime: startTime,
		Reviews:   []Review{},
		Products:  []ProductReview{},
		Pests:     []PestReview{},
	}
}

// Locked reports whether the report completed a full finalize+sync cycle and
// must reject further edits.
func (r Report) Locked() bool {
	return r.IsFinalized && r.IsSynchronized
}

// FindReview returns the review for the given device, or nil.
func (r *Report) FindReview(deviceID int) *Review {
	for i := range r.Reviews {
		if r.Reviews[i].DeviceID == deviceID {
			return &r.Reviews[i]
		}
	}
	return nil
}

// Review is the portion of a Report pertaining to one Device. device_id is
// unique within the owning report's reviews.
type Review struct {
	DeviceID     int             `json:"device_id"`
	Pests        []PestReview    `json:"pests"`
	Products     []ProductReview `json:"products"`
	Answers      []Answer        `json:"answers"`
	Image        *string         `json:"image"`
	Observations string          `json:"observations,omitempty"`
	IsChecked    bool            `json:"is_checked"`
	IsScanned    bool            `json:"is_scanned"`
}

type Answer struct {
	QuestionID int    `json:"question_id"`
	Response   string `json:"response"`
}

type PestReview struct {
	PestID    int      `json:"pest_id"`
	ServiceID int      `json:"service_id"`
	Count     Quantity `json:"count"`
}

type ProductReview struct {
	Name        string   `json:"name"`
	ProductID   int      `json:"product_id"`
	ServiceID   int      `json:"service_id"`
	LotID       *int     `json:"lot_id"`
	AppMethodID *int     `json:"app_method_id"`
	Amount      Quantity `json:"amount"`
	Metric      string   `json:"metric"`
}

// Quantity tolerates the ERP's mixed encoding of amounts and pest counts,
// which arrive either as JSON numbers or as strings (and occasionally null).
// The value round-trips in its original form.
type Quantity string

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*q = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = Quantity(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*q = Quantity(n.String())
	return nil
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	if q == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseFloat(string(q), 64); err == nil {
		return []byte(q), nil
	}
	return json.Marshal(string(q))
}
