package driverproxy

import "aeron-driver/internal/channeluri"

// ImageCreatedCmd is the internal command the receiver posts back to the
// conductor when it has started demuxing a new remote publication
// (spec.md §2 step 2, §4.3). This is the one-producer/one-consumer queue
// the conductor polls every do_work tick, distinct from the conductor's
// outbound ReceiverProxy mailbox above.
type ImageCreatedCmd struct {
	CorrelationID  int64
	Endpoint       channeluri.EndpointKey
	StreamID       int32
	SessionID      int32
	InitialTermID  int32
	ActiveTermID   int32
	TermOffset     int32
	LogFileName    string
	SourceIdentity string
}

// ImageInactiveCmd is the internal command the receiver posts when it
// determines a remote publication has gone quiet (no status message
// within the receiver's own liveness window, spec.md §4.3's
// "ifActiveGoInactive()"), driving the image's ACTIVE->INACTIVE edge.
type ImageInactiveCmd struct {
	CorrelationID int64
}

// ReceiverEvents is the inbound mailbox set carrying receiver-originated
// events to the conductor.
type ReceiverEvents struct {
	ImageCreated  *Mailbox[ImageCreatedCmd]
	ImageInactive *Mailbox[ImageInactiveCmd]
}

// NewReceiverEvents creates the inbound mailbox set.
func NewReceiverEvents(capacity int, onDrop func()) *ReceiverEvents {
	return &ReceiverEvents{
		ImageCreated:  NewMailbox[ImageCreatedCmd](capacity, onDrop),
		ImageInactive: NewMailbox[ImageInactiveCmd](capacity, onDrop),
	}
}
