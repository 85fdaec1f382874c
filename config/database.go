package config

import (
	"context"

	"webstack/internal/database"
	"webstack/internal/metrics"

	"github.com/sirupsen/logrus"
)

// NewDatabaseManager creates one Connection per configured node and reports
// their state transitions to recorder. Nothing is dialled until Manager.Connect.
func NewDatabaseManager(s *Settings, recorder *metrics.Recorder, logger logrus.FieldLogger) (*database.Manager, error) {
	nodes, err := s.Nodes()
	if err != nil {
		return nil, err
	}
	logger = logger.WithField("component", "MongoManager")

	conns := make([]*database.Connection, 0, len(nodes))
	for _, node := range nodes {
		conn := database.NewConnection(node.Name, database.NewMongoDriver(node.URI, node.Name), logger,
			database.WithReadyTimeout(s.ReadyTimeout()))
		conn.Observe(func(t database.Transition) {
			recorder.StateTransition(context.Background(), t.Node, string(t.Event))
		})
		conns = append(conns, conn)
	}
	return database.NewManager(conns, database.WithLogger(logger)), nil
}
