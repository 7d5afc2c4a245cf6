package outbox

import (
	"encoding/json"
	"strings"
	"time"

	appoutbox "rentbook/internal/app/outbox"
)

const (
	specVersion  = "1.0"
	schemaSuffix = ".v1"
)

// cloudEvent is the structured-mode CloudEvents 1.0 envelope put on the wire.
type cloudEvent struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
	TraceParent     string          `json:"traceparent,omitempty"`
}

func envelope(rec appoutbox.EventRecord, source string) ([]byte, map[string]string, error) {
	ceType := rec.Name + schemaSuffix
	body, err := json.Marshal(cloudEvent{
		SpecVersion:     specVersion,
		ID:              rec.ID,
		Type:            ceType,
		Source:          source,
		Subject:         rec.Aggregate,
		Time:            rec.OccurredAt,
		DataContentType: "application/json",
		Data:            json.RawMessage(rec.Payload),
		TraceParent:     rec.Headers["traceparent"],
	})
	if err != nil {
		return nil, nil, err
	}
	headers := make(map[string]string, len(rec.Headers)+3)
	for k, v := range rec.Headers {
		headers[k] = v
	}
	headers["content-type"] = "application/cloudevents+json"
	headers["ce-id"] = rec.ID
	headers["ce-type"] = ceType
	return body, headers, nil
}

// Topic maps an event name such as rental.confirmed to <prefix>rental.events.v1.
func Topic(prefix, eventName string) string {
	family, _, _ := strings.Cut(eventName, ".")
	return prefix + family + ".events" + schemaSuffix
}
