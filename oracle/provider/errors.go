package provider

import "errors"

var (
	errNoPool        = errors.New("no pool found for asset pair")
	errBadReserves   = errors.New("pool reserves are zero, negative, or missing")
	errUnsupported   = errors.New("pair not supported by source")
	errEmptyResponse = errors.New("source returned an empty response body")
)
