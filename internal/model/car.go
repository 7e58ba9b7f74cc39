package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Lifecycle is the single moderation/sale state of a listing. It is derived
// from the stored draft, approval and status columns.
type Lifecycle string

const (
	LifecycleDraft    Lifecycle = "draft"
	LifecyclePending  Lifecycle = "pending"
	LifecycleApproved Lifecycle = "approved"
	LifecycleRejected Lifecycle = "rejected"
	LifecycleSold     Lifecycle = "sold"
)

// Stored column values.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"

	StatusUnsold = "unsold"
	StatusSold   = "sold"
)

// DeriveLifecycle maps the persisted columns onto a Lifecycle.
func DeriveLifecycle(draft bool, approval, status string) Lifecycle {
	switch {
	case draft:
		return LifecycleDraft
	case strings.EqualFold(status, StatusSold):
		return LifecycleSold
	case strings.EqualFold(approval, ApprovalApproved):
		return LifecycleApproved
	case strings.EqualFold(approval, ApprovalRejected):
		return LifecycleRejected
	default:
		return LifecyclePending
	}
}

var lifecycleEdges = map[Lifecycle][]Lifecycle{
	LifecycleDraft:    {LifecycleDraft, LifecyclePending},
	LifecyclePending:  {LifecycleApproved, LifecycleRejected, LifecyclePending},
	LifecycleApproved: {LifecycleSold},
	LifecycleRejected: {LifecyclePending},
	LifecycleSold:     {},
}

// CanTransition reports whether a listing may move from l to next.
// Sold is terminal. Editing a rejected listing resubmits it (pending);
// edits to an approved listing keep it approved.
func (l Lifecycle) CanTransition(next Lifecycle) bool {
	for _, n := range lifecycleEdges[l] {
		if n == next {
			return true
		}
	}
	return false
}

// Columns returns the stored encoding of l.
func (l Lifecycle) Columns() (draft bool, approval, status string) {
	switch l {
	case LifecycleDraft:
		return true, ApprovalPending, StatusUnsold
	case LifecycleApproved:
		return false, ApprovalApproved, StatusUnsold
	case LifecycleRejected:
		return false, ApprovalRejected, StatusUnsold
	case LifecycleSold:
		return false, ApprovalApproved, StatusSold
	default:
		return false, ApprovalPending, StatusUnsold
	}
}

// Car mirrors the cars table.
type Car struct {
	ID                    uint64     `json:"id"`
	UserID                uint64     `json:"user_id"`
	AdTitle               string     `json:"ad_title"`
	Description           string     `json:"description"`
	CarInformation        string     `json:"car_information"`
	ExteriorColor         string     `json:"exterior_color"`
	Interior              string     `json:"interior"`
	Trim                  string     `json:"trim"`
	RegionalSpecs         string     `json:"regional_specs"`
	BodyType              string     `json:"body_type"`
	Condition             string     `json:"condition"`
	Badges                string     `json:"badges"`
	Kilometers            string     `json:"kilometers"`
	Location              string     `json:"location"`
	Year                  string     `json:"year"`
	WarrantyDate          *string    `json:"warranty_date"`
	AccidentHistory       string     `json:"accident_history"`
	NumberOfSeats         string     `json:"number_of_seats"`
	NumberOfDoors         string     `json:"number_of_doors"`
	FuelType              string     `json:"fuel_type"`
	TransmissionType      string     `json:"transmission_type"`
	DriveType             string     `json:"drive_type"`
	EngineCC              string     `json:"engine_cc"`
	Make                  string     `json:"make"`
	Model                 string     `json:"model"`
	Price                 string     `json:"price"`
	ExtraFeatures         string     `json:"extra_features"`
	CarImage              string     `json:"car_image"`
	Consumption           string     `json:"consumption"`
	NoOfCylinders         string     `json:"no_of_cylinders"`
	PaymentOption         string     `json:"payment_option"`
	Status                string     `json:"status"`
	Approval              string     `json:"approval"`
	Draft                 bool       `json:"draft"`
	IsFeatured            bool       `json:"is_featured"`
	IsBestPick            bool       `json:"is_best_pick"`
	Views                 int64      `json:"views"`
	Likes                 int64      `json:"likes"`
	RejectionReason       string     `json:"rejection_reason,omitempty"`
	AdminRejectionComment string     `json:"admin_rejection_comment,omitempty"`
	SoldAt                *time.Time `json:"sold_at"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`

	ImageURL string    `json:"image_url"`
	Images   []CarImage `json:"images,omitempty"`
}

// Lifecycle returns the derived state of c.
func (c *Car) Lifecycle() Lifecycle {
	return DeriveLifecycle(c.Draft, c.Approval, c.Status)
}

// MarshalJSON adds the derived lifecycle to the wire form.
func (c Car) MarshalJSON() ([]byte, error) {
	type plain Car
	return json.Marshal(struct {
		plain
		Lifecycle Lifecycle `json:"lifecycle"`
	}{plain(c), c.Lifecycle()})
}

// CarImage is one row of car_images.
type CarImage struct {
	ID        uint64    `json:"id"`
	CarID     uint64    `json:"car_id"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

// CarSummary is the row shape returned by search, featured and recommended
// listings.
type CarSummary struct {
	ID               uint64    `json:"id"`
	UserID           uint64    `json:"user_id"`
	AdTitle          string    `json:"ad_title"`
	Make             string    `json:"make"`
	Model            string    `json:"model"`
	Year             string    `json:"year"`
	Price            string    `json:"price"`
	Description      string    `json:"description"`
	Color            string    `json:"color"`
	Mileage          string    `json:"mileage"`
	FuelType         string    `json:"fuel_type"`
	Transmission     string    `json:"transmission"`
	BodyType         string    `json:"body_type"`
	Condition        string    `json:"condition"`
	Location         string    `json:"location"`
	Status           string    `json:"status"`
	Approval         string    `json:"approval"`
	Featured         int       `json:"featured"`
	IsBestPick       bool      `json:"is_best_pick"`
	CarImage         string    `json:"car_image"`
	ImageURL         string    `json:"image_url"`
	Trim             string    `json:"trim"`
	RegionalSpecs    string    `json:"regional_specs"`
	Badges           string    `json:"badges"`
	WarrantyDate     string    `json:"warranty_date"`
	AccidentHistory  string    `json:"accident_history"`
	NumberOfSeats    string    `json:"number_of_seats"`
	NumberOfDoors    string    `json:"number_of_doors"`
	DriveType        string    `json:"drive_type"`
	EngineCC         string    `json:"engine_cc"`
	ExtraFeatures    string    `json:"extra_features"`
	Views            int64     `json:"views"`
	Likes            int64     `json:"likes"`
	IsFavorite       bool      `json:"is_favorite"`
	Recommended      bool      `json:"recommended"`
	SellerName       string    `json:"seller_name,omitempty"`
	SellerType       string    `json:"seller_type,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FlexString accepts a JSON string, number, boolean or array/object and
// keeps its textual form. Listing forms arrive from web and mobile clients
// that disagree on whether "price" is 25000 or "25000".
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	// numbers, booleans, arrays and objects keep their raw JSON text
	*f = FlexString(b)
	return nil
}

// Flex returns a pointer to s as a FlexString.
func Flex(s string) *FlexString {
	f := FlexString(s)
	return &f
}

// CarInput carries user supplied listing fields. A nil field means "not
// provided": on create it is treated as empty, on update it is left
// untouched.
type CarInput struct {
	AdTitle          *FlexString `json:"ad_title"`
	Description      *FlexString `json:"description"`
	CarInformation   *FlexString `json:"car_information"`
	ExteriorColor    *FlexString `json:"exterior_color"`
	Interior         *FlexString `json:"interior"`
	Trim             *FlexString `json:"trim"`
	RegionalSpecs    *FlexString `json:"regional_specs"`
	BodyType         *FlexString `json:"body_type"`
	Condition        *FlexString `json:"condition"`
	Badges           *FlexString `json:"badges"`
	Kilometers       *FlexString `json:"kilometers"`
	Location         *FlexString `json:"location"`
	Year             *FlexString `json:"year"`
	WarrantyDate     *FlexString `json:"warranty_date"`
	AccidentHistory  *FlexString `json:"accident_history"`
	NumberOfSeats    *FlexString `json:"number_of_seats"`
	NumberOfDoors    *FlexString `json:"number_of_doors"`
	FuelType         *FlexString `json:"fuel_type"`
	TransmissionType *FlexString `json:"transmission_type"`
	DriveType        *FlexString `json:"drive_type"`
	EngineCC         *FlexString `json:"engine_cc"`
	Make             *FlexString `json:"make"`
	Model            *FlexString `json:"model"`
	Price            *FlexString `json:"price"`
	ExtraFeatures    *FlexString `json:"extra_features"`
	CarImage         *FlexString `json:"car_image"`
	Consumption      *FlexString `json:"consumption"`
	NoOfCylinders    *FlexString `json:"no_of_cylinders"`
	PaymentOption    *FlexString `json:"payment_option"`
	Approval         *FlexString `json:"approval"`
	Status           *FlexString `json:"status"`
	Draft            *bool       `json:"draft"`
	Images           []string    `json:"images"`
}

// CarField pairs a cars column with its value slot in a CarInput.
type CarField struct {
	Column string
	Value  **FlexString
}

// Fields lists every text column of the input in table order. Callers walk
// it to normalise, validate and build SQL without reflection.
func (in *CarInput) Fields() []CarField {
	return []CarField{
		{"ad_title", &in.AdTitle},
		{"description", &in.Description},
		{"car_information", &in.CarInformation},
		{"exterior_color", &in.ExteriorColor},
		{"interior", &in.Interior},
		{"trim", &in.Trim},
		{"regional_specs", &in.RegionalSpecs},
		{"body_type", &in.BodyType},
		{"condition", &in.Condition},
		{"badges", &in.Badges},
		{"kilometers", &in.Kilometers},
		{"location", &in.Location},
		{"year", &in.Year},
		{"warranty_date", &in.WarrantyDate},
		{"accident_history", &in.AccidentHistory},
		{"number_of_seats", &in.NumberOfSeats},
		{"number_of_doors", &in.NumberOfDoors},
		{"fuel_type", &in.FuelType},
		{"transmission_type", &in.TransmissionType},
		{"drive_type", &in.DriveType},
		{"engine_cc", &in.EngineCC},
		{"make", &in.Make},
		{"model", &in.Model},
		{"price", &in.Price},
		{"extra_features", &in.ExtraFeatures},
		{"car_image", &in.CarImage},
		{"consumption", &in.Consumption},
		{"no_of_cylinders", &in.NoOfCylinders},
		{"payment_option", &in.PaymentOption},
	}
}

// Get returns the value of column, or "" when it is not set.
func (in *CarInput) Get(column string) string {
	for _, f := range in.Fields() {
		if f.Column == column && *f.Value != nil {
			return string(**f.Value)
		}
	}
	return ""
}

// Set assigns column. Unknown columns are ignored and reported false.
func (in *CarInput) Set(column, value string) bool {
	for _, f := range in.Fields() {
		if f.Column == column {
			*f.Value = Flex(value)
			return true
		}
	}
	return false
}

// ColumnValues returns the persisted text columns of c keyed by column name.
// Update merges use it to validate the record a patch would produce.
func (c *Car) ColumnValues() map[string]string {
	wd := ""
	if c.WarrantyDate != nil {
		wd = *c.WarrantyDate
	}
	return map[string]string{
		"ad_title": c.AdTitle, "description": c.Description, "car_information": c.CarInformation,
		"exterior_color": c.ExteriorColor, "interior": c.Interior, "trim": c.Trim,
		"regional_specs": c.RegionalSpecs, "body_type": c.BodyType, "condition": c.Condition,
		"badges": c.Badges, "kilometers": c.Kilometers, "location": c.Location, "year": c.Year,
		"warranty_date": wd, "accident_history": c.AccidentHistory,
		"number_of_seats": c.NumberOfSeats, "number_of_doors": c.NumberOfDoors,
		"fuel_type": c.FuelType, "transmission_type": c.TransmissionType, "drive_type": c.DriveType,
		"engine_cc": c.EngineCC, "make": c.Make, "model": c.Model, "price": c.Price,
		"extra_features": c.ExtraFeatures, "car_image": c.CarImage, "consumption": c.Consumption,
		"no_of_cylinders": c.NoOfCylinders, "payment_option": c.PaymentOption,
		"user_id": strconv.FormatUint(c.UserID, 10),
	}
}

// ListingStats counts a user's listings by state.
type ListingStats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Sold     int64 `json:"sold"`
	Rejected int64 `json:"rejected"`
	Pending  int64 `json:"pending"`
}

// UserCars groups a user's own listings the way the "my listings" screen
// shows them.
type UserCars struct {
	ApprovedPending []Car `json:"approved_pending"`
	Sold            []Car `json:"sold"`
	Draft           []Car `json:"draft"`
}
