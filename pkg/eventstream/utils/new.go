// Package eventstreamutils is the eventstream utility package
package eventstreamutils

import (
	"fmt"
	"log/slog"

	"github.com/meridianlabs/mnemo/pkg/eventstream"
	"github.com/meridianlabs/mnemo/pkg/eventstream/kafka"
	"github.com/meridianlabs/mnemo/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	// ProviderType selects the backend: "kafka" or "nop".
	ProviderType string

	Brokers []string
	Topic   string
	Logger  *slog.Logger
}

func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: o.Brokers,
			Topic:   o.Topic,
			Logger:  o.Logger,
		})

	case "nop", "":
		return nop.NewPublisher(), nil

	default:
		return nil, fmt.Errorf("unsupported event stream provider: %s", o.ProviderType)
	}
}
