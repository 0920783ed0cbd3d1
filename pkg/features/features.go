// Package features derives calendar and weather features for load forecasting.
package features

import (
	"fmt"
	"math"

	"github.com/HatiCode/loadcast/pkg/models"
)

// HamburgLatitude is the default latitude for daylight computation.
const HamburgLatitude = 53.551086

// DefaultComfortThreshold is the temperature (°C) above which it is too hot
// and below which it is too cold.
const DefaultComfortThreshold = 20.0

// Feature columns added by Builder.
const (
	ColHour      = "hour"
	ColDayOfYear = "dayofyear"
	ColDaylight  = "daylight"
	ColTooHot    = "too_hot"
	ColTooCold   = "too_cold"
)

// Daylight returns the number of daylight hours on the given day of the year
// at latitude (degrees), using the CBM model of Forsythe et al.
func Daylight(day int, latitude float64) float64 {
	const (
		ast   = 0.9671396
		abc   = 0.2163108
		decl  = 0.39795
		angle = 0.8333 * math.Pi / 180
	)

	shift := float64(day - 186)
	p := math.Asin(decl * math.Cos(abc+2*math.Atan(ast*math.Tan(0.00860*shift))))

	lat := latitude * math.Pi / 180
	numerator := angle + math.Sin(lat)*math.Sin(p)
	denominator := math.Cos(lat) * math.Cos(p)

	return 24 - (24/math.Pi)*math.Acos(math.Sin(numerator)/denominator)
}

// Discomfort splits temp around threshold into how far it is above
// (tooHot) and below (tooCold). Both are non-negative and at most one is > 0.
func Discomfort(temp, threshold float64) (tooHot, tooCold float64) {
	d := temp - threshold
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

// Builder adds calendar and discomfort features to frames.
type Builder struct {
	// Latitude used for daylight hours.
	Latitude float64

	// ComfortThreshold splits temperature into too_hot / too_cold.
	ComfortThreshold float64

	// TempColumn is the temperature column. If absent from a row, the
	// discomfort features are missing for that row.
	TempColumn string
}

// NewBuilder returns a builder with Hamburg latitude, a 20°C threshold and
// the "temp" column.
func NewBuilder() *Builder {
	return &Builder{
		Latitude:         HamburgLatitude,
		ComfortThreshold: DefaultComfortThreshold,
		TempColumn:       "temp",
	}
}

// BuildFeatures returns a copy of data with hour, dayofyear, daylight,
// too_hot and too_cold columns.
func (b *Builder) BuildFeatures(data models.Frame) (models.Frame, error) {
	if b.Latitude < -90 || b.Latitude > 90 {
		return models.Frame{}, fmt.Errorf("latitude %v out of range [-90, 90]", b.Latitude)
	}

	out := data.Clone()
	for i := range out.Rows {
		r := &out.Rows[i]
		doy := r.Time.YearDay()

		r.Values[ColHour] = models.Float(float64(r.Time.Hour()))
		r.Values[ColDayOfYear] = models.Float(float64(doy))
		r.Values[ColDaylight] = models.Float(Daylight(doy, b.Latitude))

		temp := r.Values[b.TempColumn]
		if !temp.Valid {
			r.Values[ColTooHot] = models.Missing()
			r.Values[ColTooCold] = models.Missing()
			continue
		}
		hot, cold := Discomfort(temp.Float, b.ComfortThreshold)
		r.Values[ColTooHot] = models.Float(hot)
		r.Values[ColTooCold] = models.Float(cold)
	}
	return out, nil
}
