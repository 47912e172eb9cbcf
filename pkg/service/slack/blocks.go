package slack

import (
	"github.com/slack-go/slack"

	"github.com/chapterkit/doorman/pkg/domain/model"
)

// actionsBlockID groups a message's interactive elements
const actionsBlockID = "doorman_actions"

// renderMessage converts a platform-neutral message into Slack message
// options. Plain text is always included as the notification fallback.
func renderMessage(msg model.Message) []slack.MsgOption {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}

	blocks := renderBlocks(msg)
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}

	return opts
}

func renderBlocks(msg model.Message) []slack.Block {
	var blocks []slack.Block

	if msg.Text != "" && (len(msg.Buttons) > 0 || msg.Menu != nil) {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, msg.Text, false, false), nil, nil))
	}

	var elements []slack.BlockElement
	for _, button := range msg.Buttons {
		el := slack.NewButtonBlockElement(button.ID, button.ID,
			slack.NewTextBlockObject(slack.PlainTextType, button.Label, false, false))
		switch button.Style {
		case model.StylePrimary:
			el = el.WithStyle(slack.StylePrimary)
		case model.StyleDanger:
			el = el.WithStyle(slack.StyleDanger)
		}
		elements = append(elements, el)
	}

	if menu := msg.Menu; menu != nil {
		var options []*slack.OptionBlockObject
		for _, opt := range menu.Options {
			options = append(options, slack.NewOptionBlockObject(opt.Value,
				slack.NewTextBlockObject(slack.PlainTextType, opt.Label, false, false), nil))
		}

		el := slack.NewOptionsMultiSelectBlockElement(slack.MultiOptTypeStatic,
			slack.NewTextBlockObject(slack.PlainTextType, menu.Placeholder, false, false),
			menu.ID, options...)
		if menu.MaxValues > 0 {
			max := menu.MaxValues
			el.MaxSelectedItems = &max
		}
		elements = append(elements, el)
	}

	if len(elements) > 0 {
		blocks = append(blocks, slack.NewActionBlock(actionsBlockID, elements...))
	}

	return blocks
}

// renderModal converts a platform-neutral modal into a Slack modal view.
// Each input's block id equals its input id so submissions can be read back
// by the same key.
func renderModal(modal model.Modal) slack.ModalViewRequest {
	view := slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: modal.ID,
		Title:      slack.NewTextBlockObject(slack.PlainTextType, modal.Title, false, false),
		Submit:     slack.NewTextBlockObject(slack.PlainTextType, "Submit", false, false),
		Close:      slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false),
	}

	for _, input := range modal.Inputs {
		element := slack.NewPlainTextInputBlockElement(
			slack.NewTextBlockObject(slack.PlainTextType, input.Placeholder, false, false), input.ID)
		block := slack.NewInputBlock(input.ID,
			slack.NewTextBlockObject(slack.PlainTextType, input.Label, false, false), nil, element)
		view.Blocks.BlockSet = append(view.Blocks.BlockSet, block)
	}

	return view
}
