// Package api defines the JSON documents exchanged with the simulator's HTTP
// control surface.
package api

// Values of LineStatus.Handler.
const (
	HandlerNone     = "none"
	HandlerBase     = "base"
	HandlerOverride = "override"
)

// LineStatus describes an interrupt line driven by a configured source.
type LineStatus struct {
	Line    int    `json:"line"`
	Source  string `json:"source"`
	Handler string `json:"handler"`
	Ticks   uint64 `json:"ticks"`
	Masked  bool   `json:"masked"`
}

// RaiseResponse is returned after a software interrupt was raised.
type RaiseResponse struct {
	Line   int    `json:"line"`
	Status string `json:"status"`
}

// ErrorResponse is returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
