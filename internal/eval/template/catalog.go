package template

import (
	"errors"
	"fmt"

	"github.com/aescanero/dago-node-formula/internal/formula"
)

// DefaultMessages are the built-in templates, keyed by error code. Each one
// sees "code", "message", every metadata key of the error and "functions".
var DefaultMessages = map[formula.Code]string{
	formula.CodeMalformedFraction:    `{{{trim message}}}`,
	formula.CodeUnsupportedConstruct: `{{{trim message}}}`,
	formula.CodeSyntaxError:          `{{{trim message}}}`,
	formula.CodeUnboundVariable: `{{#if name}}variable {{{quote name}}} is not bound{{else}}` +
		`{{{trim message}}}{{/if}}`,
	formula.CodeUnknownFunction: `{{#if name}}function {{{quote name}}} is not available{{else}}` +
		`{{{trim message}}}{{/if}}; available functions: {{join functions ", "}}`,
	formula.CodeDivisionByZero: `{{{trim message}}}`,
	formula.CodeNumericOverflow: `{{#if name}}variable {{{quote name}}} is not a finite number{{else}}` +
		`{{{trim message}}}{{/if}}`,
	formula.CodeResourceExhausted: `{{{trim message}}}{{#if limit}} (limit: {{{limit}}}){{/if}}`,
	formula.CodeUnknown:           `{{{default message "internal error"}}}`,
}

// functions is what UnknownFunction messages offer instead.
var functions = []interface{}{"max", "min", "log"}

// Catalog renders evaluation errors as "<Code>: <message>".
type Catalog struct {
	engine    *Engine
	templates map[formula.Code]string
}

// NewCatalog creates a catalog from DefaultMessages with overrides applied.
// Every override must parse.
func NewCatalog(engine *Engine, overrides map[formula.Code]string) (*Catalog, error) {
	templates := make(map[formula.Code]string, len(DefaultMessages))
	for code, tmpl := range DefaultMessages {
		templates[code] = tmpl
	}
	for code, tmpl := range overrides {
		if err := engine.ValidateTemplate(tmpl); err != nil {
			return nil, fmt.Errorf("invalid template for %s: %w", code, err)
		}
		templates[code] = tmpl
	}
	return &Catalog{engine: engine, templates: templates}, nil
}

// Render formats err. It never fails: if the template cannot be rendered the
// error's own text is used.
func (c *Catalog) Render(err error) string {
	if err == nil {
		return ""
	}
	code := formula.CodeOf(err)
	data := map[string]interface{}{
		"code":      string(code),
		"message":   err.Error(),
		"functions": functions,
	}
	var fe *formula.Error
	if errors.As(err, &fe) {
		data["message"] = fe.Message
		for k, v := range fe.Metadata {
			data[k] = v
		}
	}

	tmpl, ok := c.templates[code]
	if !ok {
		tmpl = c.templates[formula.CodeUnknown]
	}
	msg, rerr := c.engine.Render(tmpl, data)
	if rerr != nil || msg == "" {
		if fe != nil {
			return fe.Error()
		}
		return string(code) + ": " + err.Error()
	}
	return string(code) + ": " + msg
}
