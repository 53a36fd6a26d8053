package core

// OutputMode controls how command output is rendered.
type OutputMode int

// OutputMode constants define available output formatting modes.
const (
	OutputNormal OutputMode = iota // Default: styled tables
	OutputQuiet                    // Errors and the final verdict only
	OutputJSON                     // Structured JSON
)

// OutputModeFromFlags resolves --json and --quiet. --json wins when both are set.
func OutputModeFromFlags(jsonOut, quiet bool) OutputMode {
	switch {
	case jsonOut:
		return OutputJSON
	case quiet:
		return OutputQuiet
	default:
		return OutputNormal
	}
}

// NonInteractiveFlags groups all non-interactive options.
type NonInteractiveFlags struct {
	Yes  bool       // Auto-approve prompts
	Mode OutputMode // Output formatting mode
}

// JSONOutput represents a status message in JSON mode.
type JSONOutput struct {
	Status  string                 `json:"status"`            // "success", "error", "warning"
	Message string                 `json:"message,omitempty"` // Optional message
	Data    map[string]interface{} `json:"data,omitempty"`    // Command-specific data
	Error   *JSONError             `json:"error,omitempty"`   // Error details
}

// JSONError represents error information in JSON output.
type JSONError struct {
	Title   string `json:"title"`   // Error title
	Message string `json:"message"` // Error message
}
