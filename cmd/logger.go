package cmd

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// LogstashJSONFormatter renders entries in the logstash JSON event layout.
type LogstashJSONFormatter struct{}

// Format returns a formatted logstash message
func (f *LogstashJSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	e := make(map[string]interface{}, len(entry.Data)+4)
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			// Store error string value instead of error.
			e[k] = err.Error()
		} else {
			e[k] = v
		}
	}

	e["@timestamp"] = entry.Time.Format(time.RFC3339)
	e["@version"] = "1"

	if v, ok := entry.Data["message"]; ok {
		e["fields.message"] = v
	}
	e["message"] = entry.Message

	if v, ok := entry.Data["level"]; ok {
		e["fields.level"] = v
	}
	e["level_name"] = entry.Level.String()

	serialised, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append(serialised, '\n'), nil
}
