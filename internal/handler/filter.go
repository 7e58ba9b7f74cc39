package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-marketplace/internal/repository"
)

// requestParams merges the query string with a JSON body on POST, body
// values winning. Search endpoints accept both.
func requestParams(c echo.Context) url.Values {
	vals := url.Values{}
	for k, v := range c.QueryParams() {
		vals[k] = v
	}
	r := c.Request()
	if r.Method != http.MethodPost || r.Body == nil || !strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return vals
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return vals
	}
	for k, v := range body {
		switch t := v.(type) {
		case nil:
		case string:
			vals.Set(k, t)
		case float64:
			vals.Set(k, strconv.FormatFloat(t, 'f', -1, 64))
		default:
			vals.Set(k, fmt.Sprint(t))
		}
	}
	return vals
}

func optFloat(v url.Values, keys ...string) *float64 {
	for _, k := range keys {
		s := strings.TrimSpace(v.Get(k))
		if s == "" {
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}
	return nil
}

func optBool(v url.Values, key string) *bool {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return nil
	}
	b := s == "1" || strings.EqualFold(s, "true")
	return &b
}

func first(v url.Values, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(v.Get(k)); s != "" {
			return s
		}
	}
	return ""
}

// carFilter reads the listing filters shared by list, search and admin
// endpoints. Unknown sort values are left for the query builder to reset.
func carFilter(v url.Values) repository.CarFilter {
	page, _ := strconv.Atoi(v.Get("page"))
	limit, _ := strconv.Atoi(first(v, "limit", "per_page"))
	return repository.CarFilter{
		Type:         first(v, "type"),
		Status:       first(v, "status"),
		Approval:     first(v, "approval"),
		Make:         first(v, "make"),
		Model:        first(v, "model"),
		BodyType:     first(v, "body_type"),
		Location:     first(v, "location"),
		FuelType:     first(v, "fuel_type"),
		Transmission: first(v, "transmission", "transmission_type"),
		Condition:    first(v, "condition"),
		SellerType:   first(v, "seller_type"),
		Keyword:      first(v, "keyword", "q"),
		Featured:     optBool(v, "is_featured"),
		YearFrom:     optFloat(v, "year_from", "min_year"),
		YearTo:       optFloat(v, "year_to", "max_year"),
		PriceFrom:    optFloat(v, "price_from", "min_price"),
		PriceTo:      optFloat(v, "price_to", "max_price"),
		MileageFrom:  optFloat(v, "mileage_from", "min_mileage"),
		MileageTo:    optFloat(v, "mileage_to", "max_mileage"),
		SortBy:       first(v, "sort_by"),
		Order:        first(v, "order", "sort_order"),
		Page:         page,
		Limit:        limit,
	}
}
