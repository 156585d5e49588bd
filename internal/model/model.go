// Package model defines the GORM schema for the candles collection.
package model

import (
	"time"

	"gorm.io/datatypes"
)

// DatabaseModels lists every struct migrated into the store schema.
var DatabaseModels = []interface{}{
	&Candle{},
}

// Candle is a row in the candles table. Position and style are written
// once at insert; note and country_code are filled in by a later update.
type Candle struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	X           float64   `json:"x" gorm:"not null"`
	Y           float64   `json:"y" gorm:"not null"`
	Note        string    `json:"note" gorm:"size:255;not null;default:''"`
	CountryCode string    `json:"country_code" gorm:"size:2;not null;default:''"`
	Style       string    `json:"style" gorm:"size:16;not null;default:'regular'"`
	CreatedAt   time.Time `json:"created_at" gorm:"index:idx_candles_created_at;not null"`

	// Placement captures the viewport state at the instant of placement.
	Placement datatypes.JSON `json:"placement,omitempty"`
}

func (*Candle) TableName() string {
	return "candles"
}
