package push

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// TypePrefix namespaces every event type the hub emits.
const TypePrefix = "io.taskhub."

// NewEvent wraps payload in a CloudEvents envelope of type TypePrefix+name.
func NewEvent(source, name string, payload any) (cloudevents.Event, error) {
	e := cloudevents.NewEvent()
	e.SetID(uuid.Must(uuid.NewV7()).String())
	e.SetSource(source)
	e.SetType(TypePrefix + name)
	e.SetTime(time.Now())
	if payload != nil {
		if err := e.SetData(cloudevents.ApplicationJSON, payload); err != nil {
			return e, fmt.Errorf("encode %s payload: %w", name, err)
		}
	}
	return e, nil
}
