package garage

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidVIN = errors.New("vin must be 17 characters from A-Z (except I, O, Q) and 0-9")

const VINLength = 17

type Client struct {
	ID         uuid.UUID `json:"id" yaml:"id" db:"id"`
	Name       string    `json:"name" yaml:"name" db:"name"`
	Email      *string   `json:"email,omitempty" yaml:"email,omitempty" db:"email"`
	Phone      *string   `json:"phone,omitempty" yaml:"phone,omitempty" db:"phone"`
	HourlyRate *float64  `json:"hourly_rate,omitempty" yaml:"hourly_rate,omitempty" db:"hourly_rate"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at" db:"created_at"`
}

type Vehicle struct {
	ID       uuid.UUID `json:"id" yaml:"id" db:"id"`
	ClientID uuid.UUID `json:"client_id" yaml:"client_id" db:"client_id"`
	VIN      string    `json:"vin" yaml:"vin" db:"vin"`
	Make     *string   `json:"make,omitempty" yaml:"make,omitempty" db:"make"`
	Model    *string   `json:"model,omitempty" yaml:"model,omitempty" db:"model"`
	Year     *int      `json:"year,omitempty" yaml:"year,omitempty" db:"year"`
	Color    *string   `json:"color,omitempty" yaml:"color,omitempty" db:"color"`
}

type Settings struct {
	DefaultHourlyRate float64 `json:"default_hourly_rate" yaml:"default_hourly_rate" db:"default_hourly_rate"`
	Currency          string  `json:"currency" yaml:"currency" db:"currency"`
	BusinessName      string  `json:"business_name" yaml:"business_name" db:"business_name"`
}

func DefaultSettings() Settings {
	return Settings{DefaultHourlyRate: 0, Currency: "USD", BusinessName: "Repair Shop"}
}

// NormalizeVIN upper-cases and trims the input and validates the 17-character format.
func NormalizeVIN(raw string) (string, error) {
	vin := strings.ToUpper(strings.TrimSpace(raw))
	if len(vin) != VINLength {
		return "", ErrInvalidVIN
	}
	for _, r := range vin {
		switch {
		case r == 'I' || r == 'O' || r == 'Q':
			return "", ErrInvalidVIN
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return "", ErrInvalidVIN
		}
	}
	return vin, nil
}

// Label is a human readable vehicle description, e.g. "2015 Honda Civic (Blue)".
func (v *Vehicle) Label() string {
	var parts []string
	if v.Year != nil {
		parts = append(parts, strconv.Itoa(*v.Year))
	}
	if v.Make != nil && *v.Make != "" {
		parts = append(parts, *v.Make)
	}
	if v.Model != nil && *v.Model != "" {
		parts = append(parts, *v.Model)
	}
	label := strings.Join(parts, " ")
	if v.Color != nil && *v.Color != "" {
		if label == "" {
			label = *v.Color
		} else {
			label += " (" + *v.Color + ")"
		}
	}
	if label == "" {
		return v.VIN
	}
	return label
}
