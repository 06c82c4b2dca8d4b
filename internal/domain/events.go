package domain

// EventPreferenceCreated triggers one pipeline run. It is emitted
// synchronously after the preference is durably created, before the
// intake response is written.
const EventPreferenceCreated = "user.preference/created"

type PreferenceCreatedEvent struct {
	PreferenceID string `json:"preferenceId"`
	UserID       string `json:"userId"`
	Priority     string `json:"priority,omitempty"`
}
