//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// WebSocket close codes in the application range, shared between the
// registry (which closes replaced sessions) and the transport.
const (
	CloseSessionReplaced = 4001
	CloseAuthRejected    = 4003
)

// Conn is one live bidirectional connection owned by the registry for its
// lifetime. Implementations must serialize writes internally: Send and
// Close are called from arbitrary handler goroutines.
type Conn interface {
	// Send writes v as a single JSON frame. It fails once the
	// connection is closed or no longer writable.
	Send(v any) error
	// Ready reports whether the connection currently accepts writes.
	Ready() bool
	// Close sends a close frame with the given application code and
	// reason, then tears the connection down. Safe to call twice.
	Close(code int, reason string) error
}
