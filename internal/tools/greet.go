package tools

import (
	"context"
	"fmt"

	"asha-agent/internal/domain"
)

// NewGreetTool returns the greeting capability. It is the only capability
// with no external dependency.
func NewGreetTool() *Tool {
	return &Tool{
		Spec: domain.ToolSpec{
			Name:        "greet",
			Description: "Greet someone by name.",
			Parameters: domain.ParameterSpec{
				Required: []string{"name"},
				Properties: map[string]domain.PropertySpec{
					"name": {Type: "string", Description: "The name of the person to greet."},
				},
			},
		},
		Run: func(_ context.Context, args map[string]any) (string, error) {
			name := stringArg(args, "name", "there")
			return fmt.Sprintf("Hello %s, I'm Asha! 🌸 I'm here to help you explore jobs, careers, mentorships, and events.", name), nil
		},
	}
}
