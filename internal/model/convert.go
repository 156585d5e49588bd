package model

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/vigilspace/vigil/pkg/core"
)

// ToCore converts a GORM Candle row to the core representation.
func ToCore(c Candle) core.Candle {
	out := core.Candle{
		ID:          c.ID,
		Pos:         core.Position{X: c.X, Y: c.Y},
		Note:        c.Note,
		CountryCode: c.CountryCode,
		Style:       core.Style(c.Style),
		CreatedAt:   c.CreatedAt,
	}
	if len(c.Placement) > 0 {
		var snap core.PlacementSnapshot
		if err := json.Unmarshal(c.Placement, &snap); err == nil {
			out.Placement = &snap
		}
	}
	return out
}

// FromCore converts a core candle into its GORM row.
func FromCore(c core.Candle) Candle {
	row := Candle{
		ID:          c.ID,
		X:           c.Pos.X,
		Y:           c.Pos.Y,
		Note:        c.Note,
		CountryCode: c.CountryCode,
		Style:       string(c.Style),
		CreatedAt:   c.CreatedAt,
	}
	if c.Placement != nil {
		if b, err := json.Marshal(c.Placement); err == nil {
			row.Placement = datatypes.JSON(b)
		}
	}
	return row
}

// ManyToCore converts a slice of rows, preserving order.
func ManyToCore(rows []Candle) []core.Candle {
	out := make([]core.Candle, len(rows))
	for i, r := range rows {
		out[i] = ToCore(r)
	}
	return out
}
