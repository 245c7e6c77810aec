package numbering

// DeriveFunctionCode returns the current-width function code for the entity
// identified by baseCode. The schema layer becomes 03 and the final digit is
// sequence. A current-width baseCode has its trailing digit discarded first.
func DeriveFunctionCode(baseCode string, sequence int) (Code, error) {
	return deriveFrom(baseCode, LayerFunctions, sequence)
}

// DeriveAuxiliaryFileCode returns a sibling file code that keeps the schema
// layer of baseCode. Sequence 1 is the primary table; 2-9 are audit, info,
// node and junction tables in whatever order the caller needs.
func DeriveAuxiliaryFileCode(baseCode string, sequence int) (Code, error) {
	return deriveFrom(baseCode, "", sequence)
}

// DeriveReadCode returns the read-side view code for the entity of baseCode.
func DeriveReadCode(baseCode string, sequence int) (Code, error) {
	return deriveFrom(baseCode, LayerReadSide, sequence)
}

func deriveFrom(baseCode string, layer SchemaLayer, sequence int) (Code, error) {
	c, err := Decompose(baseCode)
	if err != nil {
		return Code{}, err
	}
	return c.Derive(layer, sequence)
}

// Derive returns a current-width code for the same entity with the given
// schema layer and file/function sequence. An empty layer keeps the current one.
func (c Code) Derive(layer SchemaLayer, sequence int) (Code, error) {
	enc := c.Encoding()
	if sequence < 0 || sequence > enc.MaxDigit() {
		return Code{}, &SequenceError{Sequence: sequence, Max: enc.MaxDigit()}
	}
	if layer != "" {
		c.Layer = layer
	}
	c.Sequence = sequence
	c.Width = CurrentWidth
	return c, nil
}
