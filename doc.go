// Package courier is a store-and-forward relay.
//
// Every submitted payload is written to a durable store before anything else
// happens. Delivery to the downstream consumer is then attempted in the
// background with bounded exponential backoff, and a retry sweeper
// re-drives messages that are still pending or failed, so a transient
// downstream outage delays delivery instead of losing data.
//
// Delivery is at-least-once: a downstream that must not see duplicates
// should deduplicate on the X-Courier-Message-ID header.
//
// Quick start:
//
//	c, err := courier.New(
//	    courier.WithStore(memory.New()),
//	    courier.WithDownstreamURL("https://backend.internal/fhir"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c.Start(ctx)
//	defer c.Stop(context.Background())
//
//	msgID, err := c.Submit(ctx, []byte(`{"resourceType":"Patient"}`))
package courier
