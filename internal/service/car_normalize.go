package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/repository"
	"github.com/iliyamo/car-marketplace/internal/storage"
)

// RequiredCarFields must be non-empty on a non-draft listing, checked in
// this order so the first missing field is the one reported. user_id comes
// from the token and is checked separately.
var RequiredCarFields = []string{
	"ad_title", "description", "car_information", "exterior_color", "interior", "trim",
	"regional_specs", "body_type", "condition", "badges", "kilometers", "location", "year",
	"warranty_date", "accident_history", "number_of_seats", "number_of_doors", "fuel_type",
	"transmission_type", "drive_type", "engine_cc", "make", "model", "price", "extra_features",
	"car_image", "payment_option",
}

// ValidateRequired checks get(field) for every required field.
func ValidateRequired(userID uint64, get func(string) string) error {
	if userID == 0 {
		return Required("user_id")
	}
	for _, f := range RequiredCarFields {
		if strings.TrimSpace(get(f)) == "" {
			return Required(f)
		}
	}
	return nil
}

// NormalizeInt renders x as str(int(float(x))), "0" when empty or invalid.
func NormalizeInt(x string) string {
	f, ok := parseFloat(x)
	if !ok {
		return "0"
	}
	return strconv.FormatInt(int64(f), 10)
}

// NormalizePrice renders x as a float string ("25000" -> "25000.0"), "0"
// when empty or invalid.
func NormalizePrice(x string) string {
	f, ok := parseFloat(x)
	if !ok {
		return "0"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func parseFloat(x string) (float64, bool) {
	x = strings.TrimSpace(x)
	if x == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(x, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return 0, false
	}
	return f, true
}

// NormalizeWarranty returns the date when it is a valid YYYY-MM-DD, else nil
// so it is stored as NULL.
func NormalizeWarranty(x string) *string {
	x = strings.TrimSpace(x)
	if _, err := time.Parse("2006-01-02", x); err != nil {
		return nil
	}
	return &x
}

// NormalizeExtraFeatures canonicalises the features field to a JSON array
// string. A JSON array is kept, a JSON scalar is wrapped, comma separated
// text is split and trimmed, anything else becomes a one element array.
// Empty input yields "[]".
func NormalizeExtraFeatures(x string) string {
	x = strings.TrimSpace(x)
	if x == "" {
		return "[]"
	}
	var parsed any
	if err := decodeJSON(x, &parsed); err == nil {
		switch v := parsed.(type) {
		case []any:
			return mustJSON(v)
		case nil:
			return "[]"
		default:
			if _, isString := v.(string); !isString || !strings.Contains(x, ",") {
				return mustJSON([]any{v})
			}
			x = v.(string)
		}
	}
	if strings.Contains(x, ",") {
		parts := strings.Split(x, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return mustJSON(out)
	}
	return mustJSON([]string{x})
}

// mustJSON renders v the way the stored listings were always written:
// ", " between items, ": " after keys, non-ASCII escaped as \uXXXX.
func mustJSON(v any) string {
	var b strings.Builder
	if err := writeJSON(&b, v); err != nil {
		return "[]"
	}
	return b.String()
}

func decodeJSON(x string, v any) error {
	dec := json.NewDecoder(strings.NewReader(x))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}

func writeJSON(b *strings.Builder, v any) error {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case json.Number:
		b.WriteString(t.String())
	case string:
		writeJSONString(b, t)
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		return writeJSON(b, items)
	case []any:
		b.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := writeJSON(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			writeJSONString(b, k)
			b.WriteString(": ")
			if err := writeJSON(b, t[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return err
		}
		b.Write(raw)
	}
	return nil
}

func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\b':
			b.WriteString(`\b`)
		case r == '\f':
			b.WriteString(`\f`)
		case r < 0x20 || (r > 0x7f && r <= 0xffff):
			fmt.Fprintf(b, `\u%04x`, r)
		case r > 0xffff:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(b, `\u%04x\u%04x`, hi, lo)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}

// NormalizeApproval lower-cases and unquotes an approval value; anything
// outside pending/approved/rejected falls back to pending.
func NormalizeApproval(x string) string {
	x = strings.ToLower(strings.TrimSpace(x))
	x = strings.NewReplacer(`"`, "", "'", "").Replace(x)
	switch x {
	case model.ApprovalPending, model.ApprovalApproved, model.ApprovalRejected:
		return x
	}
	return model.ApprovalPending
}

// NormalizeColumn canonicalises one column value. The second result is
// false when the value must be stored as NULL.
func NormalizeColumn(column, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	switch column {
	case "kilometers", "engine_cc", "year":
		return NormalizeInt(raw), true
	case "price":
		return NormalizePrice(raw), true
	case "number_of_seats", "number_of_doors":
		if raw == "" {
			return "0", true
		}
		return raw, true
	case "warranty_date":
		if w := NormalizeWarranty(raw); w != nil {
			return *w, true
		}
		return "", false
	case "extra_features":
		return NormalizeExtraFeatures(raw), true
	case "car_image":
		return storage.CanonicalImagePath(raw), true
	}
	return raw, true
}

// BuildCar normalises every field of in into a new car row owned by userID.
// Missing fields are treated as empty.
func BuildCar(userID uint64, in *model.CarInput) *model.Car {
	c := &model.Car{UserID: userID}
	vals := map[string]string{}
	for _, f := range in.Fields() {
		raw := ""
		if *f.Value != nil {
			raw = string(**f.Value)
		}
		v, ok := NormalizeColumn(f.Column, raw)
		if f.Column == "warranty_date" {
			if ok {
				c.WarrantyDate = &v
			}
			continue
		}
		vals[f.Column] = v
	}
	c.AdTitle, c.Description, c.CarInformation = vals["ad_title"], vals["description"], vals["car_information"]
	c.ExteriorColor, c.Interior, c.Trim = vals["exterior_color"], vals["interior"], vals["trim"]
	c.RegionalSpecs, c.BodyType, c.Condition = vals["regional_specs"], vals["body_type"], vals["condition"]
	c.Badges, c.Kilometers, c.Location, c.Year = vals["badges"], vals["kilometers"], vals["location"], vals["year"]
	c.AccidentHistory, c.NumberOfSeats, c.NumberOfDoors = vals["accident_history"], vals["number_of_seats"], vals["number_of_doors"]
	c.FuelType, c.TransmissionType, c.DriveType = vals["fuel_type"], vals["transmission_type"], vals["drive_type"]
	c.EngineCC, c.Make, c.Model, c.Price = vals["engine_cc"], vals["make"], vals["model"], vals["price"]
	c.ExtraFeatures, c.CarImage = vals["extra_features"], vals["car_image"]
	c.Consumption, c.NoOfCylinders, c.PaymentOption = vals["consumption"], vals["no_of_cylinders"], vals["payment_option"]
	return c
}

// PatchAssignments turns the non-nil fields of in into normalised column
// assignments for a sparse update.
func PatchAssignments(in *model.CarInput) []repository.Assignment {
	var out []repository.Assignment
	for _, f := range in.Fields() {
		if *f.Value == nil {
			continue
		}
		v, ok := NormalizeColumn(f.Column, string(**f.Value))
		if ok {
			out = append(out, repository.Assignment{Column: f.Column, Value: v})
		} else {
			out = append(out, repository.Assignment{Column: f.Column, Value: nil})
		}
	}
	return out
}

// mergedValues overlays the raw non-nil fields of in on the stored car, for
// validating the record an update would produce.
func mergedValues(c *model.Car, in *model.CarInput) func(string) string {
	vals := c.ColumnValues()
	for _, f := range in.Fields() {
		if *f.Value != nil {
			vals[f.Column] = strings.TrimSpace(string(**f.Value))
		}
	}
	return func(col string) string { return vals[col] }
}
