package validation

// Validator checks tool arguments against the tool's parameter schema
// before dispatch. Uses JSON Schema Draft 2020-12.
type Validator interface {
	ValidateArgs(args map[string]any, paramSchema []byte) error
}
