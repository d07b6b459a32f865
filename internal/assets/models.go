package assets

import _ "embed"

// ModelsData holds the provider and model catalog: each provider's backend
// variant, credential variable, routing prefixes and the models it serves.
//
//go:embed models.json
var ModelsData []byte
