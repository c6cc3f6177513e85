// Package features derives the numeric feature vectors that scorers consume.
//
// Each Schema is a named, versioned feature layout. A Vector always carries the
// id of the schema that produced it so a scorer trained on a different layout
// can refuse it instead of silently mis-scoring.
package features

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"

	"github.com/okian/reimburse/internal/domain/model"
)

// Schema ids.
const (
	Poly16      = "poly16"
	Heuristic13 = "heuristic13"
	Linear11    = "linear11"
)

// Feature names shared by the schemas.
const (
	Duration            = "trip_duration_days"
	Miles               = "miles_traveled"
	Receipts            = "total_receipts_amount"
	MilesPerDay         = "m/d"
	ReceiptsPerDay      = "r/d"
	ReceiptsSquared     = "r^2"
	MilesSquared        = "m^2"
	DurationMiles       = "d*m"
	DurationMilesSq     = "d^2*m^2"
	LogDurationReceipts = "log(d*r)"
	LogMilesReceipts    = "log(m*r)"
	LogReceipts         = "log(r)"
	CentsBugFlag        = "cents_bug_flag"
	LongTripFlag        = "is_more_than_5_day_trip_flag"
	FiveDayTripFlag     = "is_5_day_trip_flag"
	EightDayTripFlag    = "is_8_day_trip_flag"
	TieredMileage       = "tiered_mileage"
	EfficiencyBonus     = "efficiency_bonus_flag"
	SweetSpotDuration   = "sweet_spot_duration_flag"
	LowReceiptPenalty   = "low_receipt_penalty_flag"
	SweetSpotCombo      = "sweet_spot_combo_flag"
	VacationPenalty     = "vacation_penalty_flag"
)

// Vector is an ordered feature vector tagged with its schema id.
type Vector struct {
	Schema string
	Values []float64
}

// Schema is an immutable feature layout.
type Schema struct {
	id     string
	names  []string
	derive func(model.Case) []float64
}

// ID returns the schema id.
func (s Schema) ID() string { return s.id }

// Len returns the number of features.
func (s Schema) Len() int { return len(s.names) }

// Names returns the feature names in vector order.
func (s Schema) Names() []string { return slices.Clone(s.names) }

// Index returns the vector position of a feature.
func (s Schema) Index(name string) (int, bool) {
	i := slices.Index(s.names, name)
	return i, i >= 0
}

// Derive maps a case onto the schema's feature vector.
func (s Schema) Derive(c model.Case) Vector {
	return Vector{Schema: s.id, Values: s.derive(c)}
}

var registry = map[string]Schema{ //nolint:gochecknoglobals // immutable schema table
	Poly16: {
		id: Poly16,
		names: []string{
			Duration, Miles, Receipts, MilesPerDay, ReceiptsPerDay, ReceiptsSquared, MilesSquared,
			DurationMiles, DurationMilesSq, LogDurationReceipts, LogMilesReceipts, CentsBugFlag,
			LongTripFlag, FiveDayTripFlag, EightDayTripFlag, LogReceipts,
		},
		derive: derivePoly16,
	},
	Heuristic13: {
		id: Heuristic13,
		names: []string{
			Duration, Miles, Receipts, MilesPerDay, ReceiptsPerDay, TieredMileage, EfficiencyBonus,
			SweetSpotDuration, LowReceiptPenalty, SweetSpotCombo, VacationPenalty, CentsBugFlag,
			LogReceipts,
		},
		derive: deriveHeuristic13,
	},
	Linear11: {
		id: Linear11,
		names: []string{
			Duration, Miles, Receipts, MilesPerDay, ReceiptsPerDay, ReceiptsSquared, MilesSquared,
			DurationMiles, LogDurationReceipts, CentsBugFlag, LogReceipts,
		},
		derive: deriveLinear11,
	},
}

// Lookup returns the schema registered under id.
func Lookup(id string) (Schema, error) {
	s, ok := registry[id]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownSchema, id, IDs())
	}
	return s, nil
}

// IDs lists the registered schema ids.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// safe substitutes 1 for non-positive values used as a divisor, a log operand
// or a derived duration term.
func safe(x float64) float64 {
	if x > 0 {
		return x
	}
	return 1
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// CentsBug reports whether the receipts' cents, rounded to two places, are .49 or .99.
// The fraction is rounded from its exact binary value, so 0.495 rounds up.
func CentsBug(receipts float64) bool {
	frac := receipts - math.Floor(receipts)
	switch strconv.FormatFloat(frac, 'f', 2, 64) {
	case "0.49", "0.99":
		return true
	}
	return false
}

func derivePoly16(c model.Case) []float64 {
	d, m, r := safe(c.Duration), c.Miles, c.Receipts
	ms, rs := safe(m), safe(r)
	return []float64{
		c.Duration,
		m,
		r,
		m / d,
		r / d,
		r * r,
		m * m,
		d * m,
		(d * d) * (m * m),
		math.Log(d * rs),
		math.Log(ms * rs),
		flag(CentsBug(r)),
		flag(d >= 5),
		flag(d == 5),
		flag(d == 8),
		math.Log(rs),
	}
}

// Mileage tiers of the heuristic schema.
const (
	firstTierMiles = 100
	firstTierRate  = 0.58
	secondTierRate = 0.45
)

func deriveHeuristic13(c model.Case) []float64 {
	d, m, r := safe(c.Duration), c.Miles, c.Receipts
	mpd, rpd := m/d, r/d
	tiered := math.Min(m, firstTierMiles)*firstTierRate + math.Max(m-firstTierMiles, 0)*secondTierRate
	return []float64{
		c.Duration,
		m,
		r,
		mpd,
		rpd,
		tiered,
		flag(mpd >= 180 && mpd <= 220),
		flag(d >= 4 && d <= 6),
		flag(r > 0 && r < 50),
		flag(d == 5 && mpd >= 180 && rpd < 100),
		flag(d >= 8 && rpd > 90),
		flag(CentsBug(r)),
		math.Log(safe(r)),
	}
}

func deriveLinear11(c model.Case) []float64 {
	d, m, r := safe(c.Duration), c.Miles, c.Receipts
	rs := safe(r)
	return []float64{
		c.Duration,
		m,
		r,
		m / d,
		r / d,
		r * r,
		m * m,
		d * m,
		math.Log(d * rs),
		flag(CentsBug(r)),
		math.Log(rs),
	}
}
