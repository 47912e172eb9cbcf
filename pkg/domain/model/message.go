package model

// Button is an interactive button attached to an outbound message
type Button struct {
	ID    string
	Label string
	Style ButtonStyle
}

// ButtonStyle hints how the platform should render a button
type ButtonStyle string

const (
	StyleDefault ButtonStyle = ""
	StylePrimary ButtonStyle = "primary"
	StyleDanger  ButtonStyle = "danger"
)

// SelectOption is one choice of a select menu
type SelectOption struct {
	Value string
	Label string
}

// SelectMenu is a multi-select menu attached to an outbound message
type SelectMenu struct {
	ID          string
	Placeholder string
	Options     []SelectOption
	MaxValues   int
}

// Message is a platform-neutral outbound message. The gateway adapter
// renders it into the platform's native block format.
type Message struct {
	Text    string
	Buttons []Button
	Menu    *SelectMenu
}

// ModalInput is a single-line text input of a modal form
type ModalInput struct {
	ID          string
	Label       string
	Placeholder string
}

// Modal is a platform-neutral form opened in response to an interaction
type Modal struct {
	ID     string
	Title  string
	Inputs []ModalInput
}
