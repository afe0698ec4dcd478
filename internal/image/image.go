// Package image implements the receive-side image state machine
// (spec.md §3, §4.3): the conductor's bookkeeping for a remote
// publication once the receiver agent reports it has started demuxing.
package image

import "aeron-driver/internal/channeluri"

type State int

const (
	Init State = iota
	Active
	Inactive
	Linger
	Closing
)

func (s State) String() string {
	switch s {
	case Init:
		return "INIT"
	case Active:
		return "ACTIVE"
	case Inactive:
		return "INACTIVE"
	case Linger:
		return "LINGER"
	case Closing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Key identifies an image by the (receive endpoint, stream, session)
// triple the receiver agent reports on creation.
type Key struct {
	Endpoint  channeluri.EndpointKey
	StreamID  int32
	SessionID int32
}

// Image is one remote publication's receive-side bookkeeping. The
// receiver agent owns the actual log buffer (out of scope); the
// conductor owns lifecycle, subscriber fan-out and notification.
type Image struct {
	CorrelationID  int64
	Key            Key
	InitialTermID  int32
	ActiveTermID   int32
	TermOffset     int32
	LogFileName    string
	SourceIdentity string

	// SubscriberPositionIDs are the position-counter ids allocated to
	// every subscription currently attached to this image (spec.md
	// §3's "subscriber position" concept, exposed to late joiners and
	// to AVAILABLE_IMAGE events).
	SubscriberPositionIDs []int32

	State State

	inactiveSinceNS int64
	lingerSinceNS   int64
}

// NewImage creates an image in INIT. The conductor activates it as soon
// as it is registered, before any subscriber is notified.
func NewImage(corrID int64, key Key, initialTermID, activeTermID, termOffset int32, logFileName, sourceIdentity string) *Image {
	return &Image{
		CorrelationID:  corrID,
		Key:            key,
		InitialTermID:  initialTermID,
		ActiveTermID:   activeTermID,
		TermOffset:     termOffset,
		LogFileName:    logFileName,
		SourceIdentity: sourceIdentity,
		State:          Init,
	}
}

// Activate moves an INIT image to ACTIVE; in any other state it does
// nothing.
func (img *Image) Activate() {
	if img.State == Init {
		img.State = Active
	}
}

// AttachSubscriber records a newly joined subscriber's position id.
func (img *Image) AttachSubscriber(positionID int32) {
	img.SubscriberPositionIDs = append(img.SubscriberPositionIDs, positionID)
}

// DetachSubscriber removes a subscriber's position id and reports
// whether the image now has no subscribers left.
func (img *Image) DetachSubscriber(positionID int32) (empty bool) {
	ids := img.SubscriberPositionIDs[:0]
	for _, id := range img.SubscriberPositionIDs {
		if id != positionID {
			ids = append(ids, id)
		}
	}
	img.SubscriberPositionIDs = ids
	return len(img.SubscriberPositionIDs) == 0
}

// MarkInactive transitions an ACTIVE image to INACTIVE, e.g. because the
// receiver agent reported the remote publication has closed. It reports
// whether the transition happened, since unavailable-image fires exactly
// once, at the moment of transition, not at eventual deletion.
func (img *Image) MarkInactive(now int64) (transitioned bool) {
	if img.State != Active {
		return false
	}
	img.State = Inactive
	img.inactiveSinceNS = now
	return true
}

// Tick advances the lifecycle by one maintenance pass.
func (img *Image) Tick(now int64, imageLivenessTimeoutNS, publicationLingerNS int64) (deleted bool) {
	switch img.State {
	case Inactive:
		if now-img.inactiveSinceNS >= imageLivenessTimeoutNS {
			img.State = Linger
			img.lingerSinceNS = now
		}
		return false
	case Linger:
		if now-img.lingerSinceNS >= publicationLingerNS {
			img.State = Closing
		}
		return false
	case Closing:
		return true
	}
	return false
}
