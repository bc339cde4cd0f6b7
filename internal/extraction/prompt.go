package extraction

import "fmt"

// SystemPrompt describes the extraction rules to the reasoning engine
const SystemPrompt = `You are a financial assistant that helps users track their purchases.

When given purchase descriptions in natural language, receipt text, or transcribed speech, extract the item details and structure them appropriately.

For each item, extract:
- item_name: The name of the item
- quantity: How many units were purchased (1 if not stated)
- unit_price: Price per single unit. If only a total is given, divide it by the quantity.
- total_price: Total cost for that item (quantity * unit_price)

Always assign a receipt_id, a positive integer such as 1.

Call the save_data_to_db function with the structured data. Save every item of one purchase in a single call.

If the user attached an image, call extract_data_from_image first to read it. If the user attached audio, call transcribe_audio first to hear it.

If the user asks how much they spent on something, call get_spending_for_item and answer in one short sentence.

If the user just says hello or greets you, respond politely and ask them to describe their purchase.`

// FallbackReply is returned when the model is still calling tools after the
// last allowed round
const FallbackReply = "Sorry, I couldn't finish processing your request. Please try describing your purchase again."

func userMessage(in Input) string {
	switch {
	case in.Image != nil && in.Text != "":
		return fmt.Sprintf("I attached a receipt image (%s). Caption: %s", in.Image.ContentType, in.Text)
	case in.Image != nil:
		return fmt.Sprintf("I attached a receipt image (%s). Please record the purchase on it.", in.Image.ContentType)
	case in.Audio != nil && in.Text != "":
		return fmt.Sprintf("I attached a voice note (%s). Caption: %s", in.Audio.ContentType, in.Text)
	case in.Audio != nil:
		return fmt.Sprintf("I attached a voice note (%s) describing a purchase.", in.Audio.ContentType)
	default:
		return "Parse this purchase description and extract item details: " + in.Text
	}
}
