// Package template provides a Handlebars template engine and the error message
// catalog built on it.
//
// Every evaluation failure reaching a caller is rendered through a Catalog as
// "<Code>: <message>". The message template for a code sees the error's
// message, its metadata (name, macro, pos, limit, ...) and the list of
// available functions.
//
// Example usage:
//
//	catalog, err := template.NewCatalog(template.NewEngine(), map[formula.Code]string{
//	    formula.CodeUnboundVariable: "missing input {{{quote name}}}",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(catalog.Render(evalErr)) // UnboundVariable: missing input "x"
//
// Built-in helpers:
//   - default - Return default value if first arg is empty
//   - eq - Equality comparison
//   - quote - Wrap a string in double quotes
//   - trim - Trim whitespace from string
//   - join - Join array elements with separator
package template
