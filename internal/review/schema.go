package review

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxNumbers bounds one submission; a photo never shows more bibs.
const maxNumbers = 64

var submissionSchema = fmt.Sprintf(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "maxItems": %d,
  "items": {"type": "integer", "minimum": 0}
}`, maxNumbers)

func compileSubmissionSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("submission.json", strings.NewReader(submissionSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("submission.json")
}

// decodeNumbers validates body against the submission schema.
func (s *Server) decodeNumbers(body []byte) ([]int, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	if err := s.schema.Validate(v); err != nil {
		return nil, err
	}
	var nums []int
	if err := json.Unmarshal(body, &nums); err != nil {
		return nil, err
	}
	return nums, nil
}
