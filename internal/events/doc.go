// Package events provides the in-memory pub/sub fan-out used to push
// gateway events to connected clients. Delivery is best-effort: slow
// subscribers drop events rather than blocking the publisher.
package events
