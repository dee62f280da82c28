// Package integration contains the Admin Integration bounded context.
// This context keeps locally owned orders synchronized with the external
// admin system of record and rebroadcasts normalized status changes.
//
// Key concepts:
//   - RemoteEnvelope: one normalized inbound event (push frame or poll item)
//   - EventType: the closed set of admin event variants, dispatched through EventTypeVisitor
//   - OutboundStatusMessage: the message broadcast to local topic subscribers
//   - EventSink, OrderSource, CatalogSource: ports implemented in the infrastructure layer
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
