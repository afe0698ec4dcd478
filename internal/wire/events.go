package wire

// ErrorCode enumerates the ON_ERROR kinds from spec.md §4.1/§7.
type ErrorCode int32

const (
	ErrInvalidChannel ErrorCode = iota + 1
	ErrUnknownPublication
	ErrUnknownSubscription
	ErrMalformedCommand
	ErrGeneric
	ErrResourceExhausted
)

func (c ErrorCode) String() string {
	switch c {
	case ErrInvalidChannel:
		return "INVALID_CHANNEL"
	case ErrUnknownPublication:
		return "UNKNOWN_PUBLICATION"
	case ErrUnknownSubscription:
		return "UNKNOWN_SUBSCRIPTION"
	case ErrMalformedCommand:
		return "MALFORMED_COMMAND"
	case ErrGeneric:
		return "GENERIC_ERROR"
	case ErrResourceExhausted:
		return "RESOURCE_EXHAUSTED"
	default:
		return "UNKNOWN"
	}
}

// PublicationReadyEvent is ON_PUBLICATION_READY.
type PublicationReadyEvent struct {
	CorrelationID          int64
	RegistrationID         int64
	StreamID               int32
	SessionID              int32
	PositionLimitCounterID int32
	LogFileName            string
	IsExclusive            bool
}

func EncodePublicationReady(e *PublicationReadyEvent) []byte {
	w := NewWriter().
		PutInt64(e.CorrelationID).
		PutInt64(e.RegistrationID).
		PutInt32(e.StreamID).
		PutInt32(e.SessionID).
		PutInt32(e.PositionLimitCounterID).
		PutString(e.LogFileName)
	exclusive := int32(0)
	if e.IsExclusive {
		exclusive = 1
	}
	w.PutInt32(exclusive)
	return Frame(OnPublicationReady, w.Bytes())
}

// SubscriptionReadyEvent is ON_SUBSCRIPTION_READY (operation-succeeded with a channel-status id).
type SubscriptionReadyEvent struct {
	CorrelationID         int64
	ChannelStatusIndicator int32
}

func EncodeSubscriptionReady(e *SubscriptionReadyEvent) []byte {
	w := NewWriter().PutInt64(e.CorrelationID).PutInt32(e.ChannelStatusIndicator)
	return Frame(OnSubscriptionReady, w.Bytes())
}

// AvailableImageEvent is ON_AVAILABLE_IMAGE.
type AvailableImageEvent struct {
	CorrelationID      int64 // the image's correlation id
	SessionID          int32
	StreamID           int32
	SubscriberPositionIDs []int32
	LogFileName        string
	SourceIdentity     string
}

func EncodeAvailableImage(e *AvailableImageEvent) []byte {
	w := NewWriter().
		PutInt64(e.CorrelationID).
		PutInt32(e.SessionID).
		PutInt32(e.StreamID).
		PutInt32Slice(e.SubscriberPositionIDs).
		PutString(e.LogFileName).
		PutString(e.SourceIdentity)
	return Frame(OnAvailableImage, w.Bytes())
}

// UnavailableImageEvent is ON_UNAVAILABLE_IMAGE.
type UnavailableImageEvent struct {
	CorrelationID int64
	StreamID      int32
	ChannelURI    string
}

func EncodeUnavailableImage(e *UnavailableImageEvent) []byte {
	w := NewWriter().PutInt64(e.CorrelationID).PutInt32(e.StreamID).PutString(e.ChannelURI)
	return Frame(OnUnavailableImage, w.Bytes())
}

// ErrorEvent is ON_ERROR.
type ErrorEvent struct {
	CorrelationID int64
	Code          ErrorCode
	Message       string
}

func EncodeError(e *ErrorEvent) []byte {
	w := NewWriter().PutInt64(e.CorrelationID).PutInt32(int32(e.Code)).PutString(e.Message)
	return Frame(OnError, w.Bytes())
}

// OperationSuccessEvent is ON_OPERATION_SUCCESS.
type OperationSuccessEvent struct {
	CorrelationID int64
}

func EncodeOperationSuccess(e *OperationSuccessEvent) []byte {
	w := NewWriter().PutInt64(e.CorrelationID)
	return Frame(OnOperationSuccess, w.Bytes())
}
