package http

// Export private functions for testing
var (
	VerifySlackSignature = verifySlackSignature
	CallbackInteractions = callbackInteractions
)
