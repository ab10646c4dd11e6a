// Package webhook implements the inbound booking-system webhook pipeline.
//
// A request flows through signature verification, rate limiting, envelope
// validation and routing to an EventHandler. Every request that passes
// envelope validation is recorded in the append-only audit log, whatever the
// handler reports. Only the pipeline-level rejections produce a non-200
// response; handler failures are acknowledged so the sender does not retry.
package webhook
