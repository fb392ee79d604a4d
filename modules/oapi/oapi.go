// Package oapi embeds the OpenAPI documents served and enforced by the API.
package oapi

import "embed"

// DietaryProfileSpec is the path of the dietary profile document inside FS.
const DietaryProfileSpec = "openapi-dietary-profile.yaml"

//go:embed *.yaml
var FS embed.FS
