package shelving

import (
	"context"
	"encoding/json"

	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/labcontrol/labcontrol-api/pkg/types"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// RowDeviceStateHandler applies the light and irrigation state that field
// controllers report for a row to the scene of its module.
func RowDeviceStateHandler(svc SceneService) messaging.TopicMessageHandler {
	return func(ctx context.Context, msg amqp.Delivery, logger zerolog.Logger) {
		state := types.RowDeviceState{}

		err := json.Unmarshal(msg.Body, &state)
		if err != nil {
			logger.Error().Err(err).Msgf("failed to unmarshal message from %s", msg.RoutingKey)
			return
		}

		logger = logger.With().Uint("moduleID", state.ModuleID).Str("rowID", state.RowID).Logger()

		if state.ModuleID == 0 || state.ShelfID == "" || state.RowID == "" {
			logger.Warn().Msg("device state is missing module, shelf or row")
			return
		}

		err = svc.ApplyDeviceState(ctx, state)
		if err != nil {
			logger.Error().Err(err).Msg("could not apply device state to row")
			return
		}

		logger.Debug().Msgf("%s handled", msg.RoutingKey)
	}
}
