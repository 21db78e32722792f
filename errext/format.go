package errext

import (
	"errors"
)

// Format formats the given error as a message (string) and a map of fields.
// In case of [HasHint], it adds the hint as a field. In case of a
// [ProtocolError] carrying a peer error, the failed command and the raw
// error payload are added too, so they are never swallowed.
func Format(err error) (string, map[string]interface{}) {
	if err == nil {
		return "", nil
	}

	fields := make(map[string]interface{})
	if hint := HintOf(err); hint != "" {
		fields["hint"] = hint
	}

	var perr *ProtocolError
	if errors.As(err, &perr) {
		if perr.Command != "" {
			fields["command"] = perr.Command
		}
		if len(perr.Payload) > 0 {
			fields["peer_error"] = string(perr.Payload)
		}
	}

	return err.Error(), fields
}
