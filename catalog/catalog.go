// Package catalog looks up Archipelago brands and flagship hotels by key.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("not found")

type Brand struct {
	Key             string `json:"-"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Positioning     string `json:"positioning"`
	PropertiesCount string `json:"properties_count"`
	TargetMarket    string `json:"target_market"`
}

type Hotel struct {
	Code      string   `json:"-"`
	Name      string   `json:"name"`
	Location  string   `json:"location"`
	Brand     string   `json:"brand"`
	Rooms     int      `json:"rooms"`
	Amenities []string `json:"amenities"`
}

// Directory resolves brands by name and hotels by code, case-insensitively.
type Directory interface {
	Brand(ctx context.Context, name string) (Brand, error)
	Hotel(ctx context.Context, code string) (Hotel, error)
}

// NotFoundError lists the keys that would have matched. It satisfies
// errors.Is(err, ErrNotFound).
type NotFoundError struct {
	Kind      string
	Key       string
	Available []string
}

func (e *NotFoundError) Error() string {
	label := "Brand"
	if e.Kind == "hotel" {
		label = "Hotel code"
	}
	return fmt.Sprintf("%s '%s' not found. Available: %s", label, e.Key, strings.Join(e.Available, ", "))
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// BrandKey normalizes a brand name: "FAVE Hotel" and "favehotel" match.
func BrandKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "")
}

func HotelKey(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// StaticDirectory serves a fixed in-memory catalog.
type StaticDirectory struct {
	brands     map[string]Brand
	brandOrder []string
	hotels     map[string]Hotel
	hotelOrder []string
}

func NewStaticDirectory(brands []Brand, hotels []Hotel) *StaticDirectory {
	d := &StaticDirectory{
		brands: make(map[string]Brand, len(brands)),
		hotels: make(map[string]Hotel, len(hotels)),
	}
	for _, b := range brands {
		key := BrandKey(b.Key)
		if _, dup := d.brands[key]; !dup {
			d.brandOrder = append(d.brandOrder, key)
		}
		d.brands[key] = b
	}
	for _, h := range hotels {
		key := HotelKey(h.Code)
		if _, dup := d.hotels[key]; !dup {
			d.hotelOrder = append(d.hotelOrder, key)
		}
		d.hotels[key] = h
	}
	return d
}

// NewDefaultDirectory serves DefaultBrands and DefaultHotels.
func NewDefaultDirectory() *StaticDirectory {
	return NewStaticDirectory(DefaultBrands(), DefaultHotels())
}

func (d *StaticDirectory) Brand(_ context.Context, name string) (Brand, error) {
	if b, ok := d.brands[BrandKey(name)]; ok {
		return b, nil
	}
	return Brand{}, &NotFoundError{Kind: "brand", Key: name, Available: append([]string(nil), d.brandOrder...)}
}

func (d *StaticDirectory) Hotel(_ context.Context, code string) (Hotel, error) {
	if h, ok := d.hotels[HotelKey(code)]; ok {
		return h, nil
	}
	return Hotel{}, &NotFoundError{Kind: "hotel", Key: code, Available: append([]string(nil), d.hotelOrder...)}
}

func (d *StaticDirectory) Brands() []Brand {
	out := make([]Brand, 0, len(d.brandOrder))
	for _, key := range d.brandOrder {
		out = append(out, d.brands[key])
	}
	return out
}

func (d *StaticDirectory) Hotels() []Hotel {
	out := make([]Hotel, 0, len(d.hotelOrder))
	for _, key := range d.hotelOrder {
		out = append(out, d.hotels[key])
	}
	return out
}

var _ Directory = (*StaticDirectory)(nil)
