package eventstore

import (
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// Sentinels for history store failures. Callers match them with errors.Is.
var (
	ErrDatabaseOpenFailed     = errors.EventStoreError("could not open build history database").Build()
	ErrInitializeSchemaFailed = errors.EventStoreError("failed to initialize build history schema").Build()
	ErrEventAppendFailed      = errors.EventStoreError("failed to append build event").Build()
	ErrEventQueryFailed       = errors.EventStoreError("failed to query build events").Build()
	ErrEventScanFailed        = errors.EventStoreError("failed to scan build event rows").Build()
	ErrMarshalPayloadFailed   = errors.EventStoreError("failed to marshal event payload").Build()
	ErrUnmarshalPayloadFailed = errors.EventStoreError("failed to unmarshal event payload").Build()
)
