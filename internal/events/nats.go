package events

import (
	"encoding/json"
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subject returns the NATS subject for a project's events of one
// type. Subscribers use SubjectAll to follow a whole project.
func Subject(projectID, eventType string) string {
	return fmt.Sprintf("projects.%s.events.%s", projectID, eventType)
}

// SubjectAll is the wildcard subject covering every event type for a
// project.
func SubjectAll(projectID string) string {
	return fmt.Sprintf("projects.%s.events.*", projectID)
}

// NATSSink publishes events to a NATS connection.
type NATSSink struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewNATSSink creates a Sink over an existing NATS connection.
func NewNATSSink(conn *nats.Conn, logger *zap.Logger) (*NATSSink, error) {
	if conn == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSSink{conn: conn, logger: logger}, nil
}

// Publish implements Sink. NATS publishes are buffered client-side,
// so this does not wait for delivery.
func (s *NATSSink) Publish(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := s.conn.Publish(Subject(event.ProjectID, event.Type), data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// StartEmbeddedServer runs an in-process NATS server on an ephemeral
// port and returns it once it accepts connections. Used when no
// external NATS is configured, and by tests.
func StartEmbeddedServer() (*natsserver.Server, error) {
	srv, err := natsserver.NewServer(&natsserver.Options{
		Host: "127.0.0.1",
		Port: -1,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}

	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, fmt.Errorf("embedded nats server did not become ready")
	}
	return srv, nil
}

// Connect dials a NATS server with the retry settings used across the
// daemon.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return nc, nil
}
