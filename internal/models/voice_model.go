package models

import "gorm.io/datatypes"

// VoiceModel maps a locally generated identifier to a voice trained with the
// remote provider. Rows are created only after a successful provider call;
// the remote identifier is required and unique so the same trained voice is
// never registered twice. Title carries its own unique index so duplicate
// display names are rejected at the database level even when two writers race
// past the pre-insert existence check.
type VoiceModel struct {
	BaseModel

	RemoteModelID string `gorm:"uniqueIndex;size:128;not null" json:"remote_model_id"`
	Title         string `gorm:"uniqueIndex;size:100;not null" json:"title"`
	Description   string `gorm:"size:200" json:"description,omitempty"`

	// State mirrors the provider's training state as last reported
	// (e.g. "training", "trained").
	State string `gorm:"size:32" json:"state,omitempty"`

	// ProviderMeta keeps non-essential provider response fields for debugging.
	ProviderMeta datatypes.JSON `gorm:"type:json" json:"-"`
}

// Ready reports whether the model can be used for synthesis.
func (m *VoiceModel) Ready() bool {
	return m != nil && m.RemoteModelID != ""
}
