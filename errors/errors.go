package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrHandshakeRejected  = fmt.Errorf("handshake rejected")
	ErrMessageTooLong     = fmt.Errorf("message exceeds maximum length")
	ErrTradeNotFound      = fmt.Errorf("trade not found")
	ErrNotAParticipant    = fmt.Errorf("caller is not a participant of the trade")
	ErrNotSeller          = fmt.Errorf("caller is not the trade's seller")
	ErrNotBuyer           = fmt.Errorf("caller is not the trade's buyer")
	ErrWrongStage         = fmt.Errorf("action is not valid in the current stage")
	ErrChatNotOpen        = fmt.Errorf("chat is not open while the offer awaits acceptance")
	ErrEmptyMessage       = fmt.Errorf("message is empty")
	ErrDuplicateMessage   = fmt.Errorf("duplicate of the previous message")
	ErrControlAlreadySent = fmt.Errorf("control message already sent")
	ErrProductNotSent     = fmt.Errorf("product has not been marked as sent")
	ErrInvalidAdminToken  = fmt.Errorf("invalid or expired admin token")
	ErrConnectionNotReady = fmt.Errorf("connection is not ready for writes")
)
