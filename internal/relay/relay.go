// Package relay carries broker events between server instances that share
// a board. Each instance publishes its local events to a subject and fans
// out what it receives from the others.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/alfredjeanlab/corkboard/internal/model"
)

// DefaultSubject is the subject shared by every instance of one board.
const DefaultSubject = "corkboard.events"

// Publisher is the interface for emitting relay messages.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Subscriber delivers raw relay messages for a subject. The returned cancel
// function unsubscribes and closes the channel.
type Subscriber interface {
	Subscribe(subject string) (<-chan []byte, func(), error)
	Close() error
}

// Envelope wraps an event with the id of the instance that published it so
// receivers can drop their own echoes.
type Envelope struct {
	Instance string `cbor:"1,keyasint"`
	// Event is the JSON wire form of the event.
	Event []byte `cbor:"2,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("relay: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("relay: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeEnvelope serializes ev for the relay, tagged with instance.
func EncodeEnvelope(instance string, ev *model.Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}
	return encMode.Marshal(Envelope{Instance: instance, Event: body})
}

// DecodeEnvelope parses a relay message into its instance id and event.
func DecodeEnvelope(data []byte) (string, *model.Event, error) {
	var env Envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("decoding envelope: %w", err)
	}
	ev, err := model.DecodeEvent(env.Event)
	if err != nil {
		return env.Instance, nil, err
	}
	return env.Instance, ev, nil
}
