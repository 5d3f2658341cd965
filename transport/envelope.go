package transport

import (
	"encoding/json"
	"fmt"

	"github.com/nugget/mcpsdk"
)

// marshalEnvelope serializes whichever of Request/Response/Notification
// env holds. Exactly one must be set.
func marshalEnvelope(env *mcp.Envelope) ([]byte, error) {
	switch env.Kind() {
	case mcp.KindRequest:
		data, err := json.Marshal(env.Request)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		return data, nil
	case mcp.KindResponse:
		data, err := json.Marshal(env.Response)
		if err != nil {
			return nil, fmt.Errorf("marshal response: %w", err)
		}
		return data, nil
	case mcp.KindNotification:
		data, err := json.Marshal(env.Notification)
		if err != nil {
			return nil, fmt.Errorf("marshal notification: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("marshal envelope: empty envelope")
	}
}
