package normalizer

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://cargorelay.local/schemas/"

// compileSchemas 编译每个频道的内置 schema
func compileSchemas(channels []string) (map[string]*jsonschema.Schema, error) {
	out := make(map[string]*jsonschema.Schema, len(channels))
	for _, ch := range channels {
		b, err := schemaFS.ReadFile("schemas/" + ch + ".json")
		if err != nil {
			return nil, fmt.Errorf("normalizer: schema for %s: %w", ch, err)
		}
		s, err := compileSchema(b, schemaBaseURL+ch+".json")
		if err != nil {
			return nil, fmt.Errorf("normalizer: compile schema %s: %w", ch, err)
		}
		out[ch] = s
	}
	return out, nil
}

func compileSchema(b []byte, ref string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(ref, bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return c.Compile(ref)
}
