package handlers

// Common error message constants shared across handlers
const (
	ErrMsgInvalidRequestBody = "Invalid request body"
	ErrMsgUnauthorized       = "Unauthorized"
	ErrMsgInvalidQuestionID  = "Invalid question ID"
	ErrMsgQuestionNotFound   = "Question not found"
	ErrMsgPermissionDenied   = "permission denied"
	ErrMsgNotFound           = "not found"
	ErrMsgInternal           = "Internal server error"
)

// Path parameters
const (
	QuestionIDParam = "questionID"
)

// Request body limits
const (
	maxBodyBytes     = 1 << 20
	maxDocumentBytes = 8 << 20
)
