package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

// createWorkflow создаёт checkout workflow с Kafka или без, в зависимости
// от наличия producer.
func createWorkflow(
	deps runtimeDependencies,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) checkout.Workflow {
	if kafkaProducer != nil {
		return checkout.NewWorkflowWithKafka(
			deps.carts,
			deps.ledger,
			deps.orders,
			deps.outboxRepo,
			deps.timelineRepo,
			kafkaProducer,
			logger,
		)
	}

	return checkout.NewWorkflow(
		deps.carts,
		deps.ledger,
		deps.orders,
		deps.outboxRepo,
		deps.timelineRepo,
		logger,
	)
}
