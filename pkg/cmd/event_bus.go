package cmd

import (
	"fmt"
	"log/slog"

	"github.com/Happy-Ferret/ggrc-core/pkg/channels/gochannel"
	"github.com/Happy-Ferret/ggrc-core/pkg/channels/kafka"
	"github.com/Happy-Ferret/ggrc-core/pkg/eventbus"
	"github.com/ThreeDotsLabs/watermill"
)

func NewEventBus(provider, brokers, serviceName string, logger *slog.Logger) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "", "gochannel":
		pub, sub := gochannel.CreateChannel(wmLogger)

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, kafka.ParseBrokers(brokers), serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
