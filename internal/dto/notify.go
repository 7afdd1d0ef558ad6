package dto

import "strings"

// NotifyInput is a producer submission. Notify is the legacy name of Message.
type NotifyInput struct {
	Message string `json:"message,omitempty"`
	Notify  string `json:"notify,omitempty"`
	Title   string `json:"title,omitempty"`
	Device  string `json:"device,omitempty"`
}

// Text returns the message body, falling back to the legacy field.
func (in NotifyInput) Text() string {
	if m := strings.TrimSpace(in.Message); m != "" {
		return in.Message
	}
	return in.Notify
}

type StatsResponse struct {
	TodayCount  int64 `json:"today_count"`
	TotalCount  int64 `json:"total_count"`
	DeviceCount int64 `json:"device_count"`
	IsRunning   bool  `json:"is_running"`
	Subscribers int   `json:"subscribers"`
}

type DeletedResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}
