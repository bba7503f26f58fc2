package contract

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// contractValidate is the validator instance for contract types.
var contractValidate = validator.New()

// Contract is the unit of evaluation: the logged interactions of one AI
// application plus descriptive metadata. A contract is immutable once
// loaded; the pipeline reads it but never mutates it.
type Contract struct {
	// ID identifies the contract. Generated on load when absent.
	ID uuid.UUID `json:"contract_id"`

	// ApplicationName is the name of the evaluated application.
	ApplicationName string `json:"application_name" validate:"required"`

	// ModelInfo describes the model behind the application
	// (e.g. model_name, model_version).
	ModelInfo map[string]any `json:"model_info,omitempty"`

	// Interactions are the logged exchanges, in order.
	Interactions []Interaction `json:"interactions" validate:"required,min=1,dive"`

	// FinalOutput is an optional final answer produced by the application.
	FinalOutput string `json:"final_output,omitempty"`

	// Context carries domain context used by some evaluators,
	// e.g. context.risk_documentation.
	Context map[string]any `json:"context,omitempty"`

	// ComplianceContext carries jurisdiction and framework hints.
	ComplianceContext map[string]any `json:"compliance_context,omitempty"`

	// CreatedAt is when the contract was created.
	CreatedAt time.Time `json:"created_at"`
}

// Interaction is a single logged exchange.
type Interaction struct {
	// ID identifies the interaction. Generated on load when absent.
	ID uuid.UUID `json:"interaction_id"`

	// Timestamp is when the exchange happened. Set to load time when absent.
	Timestamp time.Time `json:"timestamp"`

	// InputText is the user input (prompt).
	InputText string `json:"input_text" validate:"required"`

	// OutputText is the application's response. May be empty.
	OutputText string `json:"output_text"`

	// Metadata holds free-form per-interaction data.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UnmarshalJSON accepts "id" as an alias of "contract_id".
func (c *Contract) UnmarshalJSON(data []byte) error {
	type plain Contract
	aux := struct {
		*plain
		AltID *uuid.UUID `json:"id"`
	}{plain: (*plain)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.ID == uuid.Nil && aux.AltID != nil {
		c.ID = *aux.AltID
	}
	return nil
}

// Validate checks the contract against its schema.
func (c *Contract) Validate() error {
	return contractValidate.Struct(c)
}

// EnsureDefaults fills identifiers and timestamps that were not provided.
func (c *Contract) EnsureDefaults(now time.Time) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	for i := range c.Interactions {
		if c.Interactions[i].ID == uuid.Nil {
			c.Interactions[i].ID = uuid.New()
		}
		if c.Interactions[i].Timestamp.IsZero() {
			c.Interactions[i].Timestamp = now
		}
	}
}

// Prompts returns the input text of every interaction, in order.
func (c *Contract) Prompts() []string {
	out := make([]string, len(c.Interactions))
	for i, in := range c.Interactions {
		out[i] = in.InputText
	}
	return out
}

// Responses returns the output text of every interaction, in order.
func (c *Contract) Responses() []string {
	out := make([]string, len(c.Interactions))
	for i, in := range c.Interactions {
		out[i] = in.OutputText
	}
	return out
}

// Conversation is the raw prompt/response pair accepted by the
// conversations entry point.
type Conversation struct {
	UserInput string `json:"user_input"`
	Response  string `json:"response"`
}

// UnmarshalJSON accepts "prompt" and "input_text" as aliases of
// "user_input", and "output_text" as an alias of "response".
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var aux struct {
		UserInput  string `json:"user_input"`
		Prompt     string `json:"prompt"`
		InputText  string `json:"input_text"`
		Response   string `json:"response"`
		OutputText string `json:"output_text"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.UserInput = firstNonEmpty(aux.UserInput, aux.Prompt, aux.InputText)
	c.Response = firstNonEmpty(aux.Response, aux.OutputText)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
