package model

import (
	"encoding/json"
	"math"
	"time"

	"pricewatch/internal/types"

	"gorm.io/datatypes"
)

// ObservationModel maps one row of price_history. Price is NULL when the
// source could not report a usable value.
type ObservationModel struct {
	ID        uint     `gorm:"column:id;primaryKey;autoIncrement"`
	SKU       string   `gorm:"column:sku;size:191;not null;index:ix_price_history_sku_ts,priority:1"`
	Site      string   `gorm:"column:site;size:191"`
	Price     *float64 `gorm:"column:price"`
	Shipping  float64  `gorm:"column:shipping;not null;default:0"`
	Available bool     `gorm:"column:available;not null;default:false"`
	TS        int64    `gorm:"column:ts;not null;index:ix_price_history_sku_ts,priority:2"`
}

func (ObservationModel) TableName() string { return "price_history" }

// NotificationModel maps the notification log.
type NotificationModel struct {
	ID        string         `gorm:"column:id;primaryKey;size:36"`
	SKU       string         `gorm:"column:sku;size:191;not null;index:ix_notifications_sku"`
	Price     float64        `gorm:"column:price"`
	Channel   string         `gorm:"column:channel;size:32"`
	Delivered bool           `gorm:"column:delivered;not null;default:false"`
	Error     string         `gorm:"column:error;type:text"`
	Message   string         `gorm:"column:message;type:text"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (NotificationModel) TableName() string { return "notifications" }

func NewObservationModel(obs types.Observation) ObservationModel {
	m := ObservationModel{
		SKU:       obs.SKU,
		Site:      obs.Site,
		Shipping:  obs.Shipping,
		Available: obs.Available,
		TS:        obs.Timestamp.UTC().UnixNano(),
	}
	if obs.PriceKnown() {
		p := obs.Price
		m.Price = &p
	}
	return m
}

func (m ObservationModel) Observation() types.Observation {
	price := types.UnknownPrice
	if m.Price != nil && !math.IsNaN(*m.Price) {
		price = *m.Price
	}
	return types.Observation{
		SKU:       m.SKU,
		Site:      m.Site,
		Price:     price,
		Shipping:  m.Shipping,
		Available: m.Available,
		Timestamp: time.Unix(0, m.TS).UTC(),
	}
}

// EncodePayload marshals a notification payload; nil maps encode as "{}".
func EncodePayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(payload)
}

func DecodePayload(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
