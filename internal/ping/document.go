package ping

import (
	"encoding/json"
	"time"
)

const (
	// DateLayout is used for dates such as the first run date.
	DateLayout = "2006-01-02-07:00"
	// TimeLayout is used for ping timestamps, at minute precision.
	TimeLayout = "2006-01-02T15:04-07:00"
)

// Info is the ping_info block.
type Info struct {
	Seq        int64  `json:"seq"`
	DocumentID string `json:"document_id"`
	Reason     string `json:"reason,omitempty"`
	EndTime    string `json:"end_time"`
}

// ClientInfo is the client_info block.
type ClientInfo struct {
	AppBuild          string `json:"app_build"`
	AppDisplayVersion string `json:"app_display_version"`
	AppChannel        string `json:"app_channel,omitempty"`
	Locale            string `json:"locale,omitempty"`
	ClientID          string `json:"client_id,omitempty"`
	FirstRunDate      string `json:"first_run_date"`
	OS                string `json:"os"`
	Architecture      string `json:"architecture"`
	SDKBuild          string `json:"telemetry_sdk_build"`
}

// Document is an assembled ping. Metrics are grouped by type, and labelled
// metrics by base identifier under labeled_<type>.
type Document struct {
	Name       string                            `json:"-"`
	PingInfo   Info                              `json:"ping_info"`
	ClientInfo ClientInfo                        `json:"client_info"`
	Metrics    map[string]map[string]interface{} `json:"metrics,omitempty"`
}

// Marshal serializes the document.
func (d *Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

func formatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
