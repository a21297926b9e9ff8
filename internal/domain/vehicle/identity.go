package vehicle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/carscore/internal/domain"
	"github.com/kailas-cloud/carscore/internal/domain/textmatch"
)

// Plausible model-year bounds.
const (
	MinYear = 1900
	MaxYear = 2100
)

// Identity is the vehicle identity tuple (immutable value object).
// Text fields are kept normalized; year is matched exactly.
type Identity struct {
	make         string
	model        string
	subModel     string
	year         int
	fuel         string
	transmission string
	mileageRange string
}

// Fields carries raw identity input before validation.
type Fields struct {
	Make         string
	Model        string
	SubModel     string
	Year         int
	Fuel         string
	Transmission string
	MileageRange string
}

// New validates and normalizes an identity.
// Make and model are required; year must lie in [MinYear, MaxYear].
func New(f Fields) (Identity, error) {
	id := Reconstruct(f)
	if id.make == "" {
		return Identity{}, domain.NewValidation("make", "is required")
	}
	if id.model == "" {
		return Identity{}, domain.NewValidation("model", "is required")
	}
	if f.Year < MinYear || f.Year > MaxYear {
		return Identity{}, domain.NewValidation("year",
			fmt.Sprintf("must be between %d and %d, got %d", MinYear, MaxYear, f.Year))
	}
	return id, nil
}

// Reconstruct normalizes fields without validation (storage hydration).
func Reconstruct(f Fields) Identity {
	return Identity{
		make:         textmatch.Normalize(f.Make),
		model:        textmatch.Normalize(f.Model),
		subModel:     textmatch.Normalize(f.SubModel),
		year:         f.Year,
		fuel:         textmatch.Normalize(f.Fuel),
		transmission: textmatch.Normalize(f.Transmission),
		mileageRange: strings.TrimSpace(f.MileageRange),
	}
}

// ParseYear parses a year given as text. Empty or non-numeric input is a validation error.
func ParseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, domain.NewValidation("year", "is required")
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, domain.NewValidation("year", fmt.Sprintf("must be an integer, got %q", s))
	}
	return y, nil
}

// Make returns the normalized make.
func (i Identity) Make() string { return i.make }

// Model returns the normalized model.
func (i Identity) Model() string { return i.model }

// SubModel returns the normalized sub-model; empty when not supplied.
func (i Identity) SubModel() string { return i.subModel }

// Year returns the model year.
func (i Identity) Year() int { return i.year }

// Fuel returns the normalized fuel type.
func (i Identity) Fuel() string { return i.fuel }

// Transmission returns the normalized transmission type.
func (i Identity) Transmission() string { return i.transmission }

// MileageRange returns the mileage band label as supplied.
func (i Identity) MileageRange() string { return i.mileageRange }

// HasSubModel reports whether a sub-model was supplied.
func (i Identity) HasSubModel() bool { return i.subModel != "" }

// Fields returns the identity as plain fields.
func (i Identity) Fields() Fields {
	return Fields{
		Make:         i.make,
		Model:        i.model,
		SubModel:     i.subModel,
		Year:         i.year,
		Fuel:         i.fuel,
		Transmission: i.transmission,
		MileageRange: i.mileageRange,
	}
}

func (i Identity) String() string {
	s := fmt.Sprintf("%s %s", i.make, i.model)
	if i.subModel != "" {
		s += " " + i.subModel
	}
	return fmt.Sprintf("%s %d", s, i.year)
}
