package models

import (
	"encoding/json"
	"time"
)

// Information is an announcement shown on the information board
type Information struct {
	ID          string    `json:"_id"`
	Information string    `json:"information"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (i *Information) UnmarshalJSON(data []byte) error {
	var raw struct {
		MongoID     string          `json:"_id"`
		ID          string          `json:"id"`
		Information string          `json:"information"`
		CreatedAt   json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	i.ID = raw.ID
	if raw.MongoID != "" {
		i.ID = raw.MongoID
	}
	i.Information = raw.Information
	i.CreatedAt, _ = parseTimestamp(raw.CreatedAt)
	return nil
}
