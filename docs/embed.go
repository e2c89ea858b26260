// Package docs serves the dispatch API reference from files compiled into the
// binary.
package docs

import "embed"

const (
	openAPIFile = "campaign-api.openapi.yaml"
	swaggerFile = "swagger.html"
)

//go:embed campaign-api.openapi.yaml swagger.html
var files embed.FS

var (
	CampaignOpenAPI     = mustRead(openAPIFile)
	CampaignSwaggerHTML = mustRead(swaggerFile)
)

func mustRead(name string) []byte {
	b, err := files.ReadFile(name)
	if err != nil {
		panic("docs: " + err.Error())
	}
	return b
}
