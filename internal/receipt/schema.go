package receipt

import (
	_ "embed"
	"encoding/json"
	"math/big"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zombor/receipt-assistant/internal/failure"
)

//go:embed receipt.schema.json
var schemaJSON []byte

var schema = jsonschema.MustCompileString("receipt.schema.json", string(schemaJSON))

// Schema returns the JSON Schema a receipt must satisfy. It doubles as the
// parameter schema of the persistence tool.
func Schema() json.RawMessage {
	out := make(json.RawMessage, len(schemaJSON))
	copy(out, schemaJSON)
	return out
}

// wireReceipt accepts receipt_id as any JSON number so that 3.0 decodes once
// the schema has confirmed it is integral.
type wireReceipt struct {
	ReceiptID json.Number `json:"receipt_id"`
	Items     []Item      `json:"items"`
}

// Parse validates raw tool-call arguments and decodes them into a Receipt.
// Only shape is checked; quantity*unit_price may disagree with total_price.
func Parse(raw []byte) (*Receipt, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &failure.ValidationError{Reason: "arguments are not valid JSON", Err: err}
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &failure.ValidationError{Reason: "arguments do not match the receipt schema", Err: err}
	}

	var wire wireReceipt
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &failure.ValidationError{Reason: "decoding receipt", Err: err}
	}
	id, err := receiptID(wire.ReceiptID)
	if err != nil {
		return nil, err
	}

	return &Receipt{
		ReceiptID: id,
		Items:     wire.Items,
	}, nil
}

// receiptID converts an integral JSON number to int64, accepting forms such
// as 3.0 and rejecting anything outside the int64 range.
func receiptID(n json.Number) (int64, error) {
	if id, err := n.Int64(); err == nil {
		return id, nil
	}
	f, ok := new(big.Float).SetPrec(256).SetString(n.String())
	if !ok || !f.IsInt() {
		return 0, &failure.ValidationError{Reason: "receipt_id is not an integer"}
	}
	id, accuracy := f.Int64()
	if accuracy != big.Exact {
		return 0, &failure.ValidationError{Reason: "receipt_id out of range"}
	}
	return id, nil
}
