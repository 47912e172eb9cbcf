package slack

// Export private functions for testing
var (
	RenderMessage = renderMessage
	RenderBlocks  = renderBlocks
	RenderModal   = renderModal
	WrapAPIError  = wrapAPIError
)

const ActionsBlockID = actionsBlockID
