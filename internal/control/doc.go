// Package control turns a user's request to actuate a device into a
// published transmitter command.
//
// Each request passes through a fixed lifecycle:
//
//	Received -> Authorizing -> Authorized -> Dispatching -> Published
//
// The ownership check is the only gate in front of the transmitter. A
// requester who does not own the device (or asks about a device that does
// not exist) ends in Rejected and nothing is published. Publish failures
// end in Failed and are never retried here; the caller decides whether to
// resubmit.
//
// Commands are JSON documents produced by the device profile, published to
//
//	{prefix}/command/{variant}/{device_id}
//
// Dispatcher outcomes are counted in rfcontrol_control_requests_total and
// publish latency is observed in rfcontrol_control_publish_seconds.
package control
