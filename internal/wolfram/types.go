package wolfram

import (
	"context"
	"errors"
	"fmt"
)

// Operation names the sub-API an outbound call targets. The same name is
// reused as the cache-key prefix so each sub-API has its own key space.
type Operation string

const (
	OpQuery    Operation = "query"
	OpSimple   Operation = "simple"
	OpShort    Operation = "short"
	OpSpoken   Operation = "spoken"
	OpConverse Operation = "converse"
)

// QueryOptions are per-call overrides merged over the client defaults.
// An empty field means "use the default"; a set field always wins.
type QueryOptions struct {
	Units    string   `json:"units,omitempty"`
	Location string   `json:"location,omitempty"`
	Scanners []string `json:"scanners,omitempty"`
	PodState string   `json:"podstate,omitempty"`
	MaxChars int      `json:"maxchars,omitempty"`
}

// SubPod is one plain-text fragment inside a pod.
type SubPod struct {
	Title     string `json:"title"`
	PlainText string `json:"plaintext"`
}

// Pod is a titled block of the full-query response.
type Pod struct {
	Title   string   `json:"title"`
	Scanner string   `json:"scanner"`
	ID      string   `json:"id"`
	Primary bool     `json:"primary,omitempty"`
	SubPods []SubPod `json:"subpods"`
}

// AssumptionValue is one selectable interpretation of an ambiguous input.
type AssumptionValue struct {
	Name string `json:"name"`
	Desc string `json:"desc"`
}

// Assumption records how the remote disambiguated the input.
type Assumption struct {
	Type   string            `json:"type"`
	Values []AssumptionValue `json:"values"`
}

// Warning is a free-text caveat attached to the response.
type Warning struct {
	Text string `json:"text"`
}

// QueryResult is the decoded full-query payload. Immutable once returned.
type QueryResult struct {
	Success     bool         `json:"success"`
	Error       bool         `json:"error"`
	NumPods     int          `json:"numpods"`
	DataTypes   string       `json:"datatypes"`
	Timing      float64      `json:"timing"`
	Pods        []Pod        `json:"pods"`
	Assumptions []Assumption `json:"assumptions,omitempty"`
	Warnings    []Warning    `json:"warnings,omitempty"`
}

// ConverseResult is one turn of the conversational sub-API.
type ConverseResult struct {
	Result         string `json:"result"`
	ConversationID string `json:"conversationID"`
	Host           string `json:"host"`
}

// ErrNoResult signals a transport-level success whose payload carries no
// usable answer (success=false, empty pods, remote "no short answer" text).
// Callers substitute a placeholder rather than treating this as a failure.
var ErrNoResult = errors.New("wolfram: no result")

// ErrConversationExpired is the remote's explicit staleness signal for a
// conversation handle. The caller clears the handle and reissues once.
var ErrConversationExpired = errors.New("wolfram: conversation expired")

// UpstreamError is the single error kind for failed outbound calls: transport
// failures, unexpected statuses, and unparseable payloads all land here with
// the underlying cause attached.
type UpstreamError struct {
	Op     Operation
	Status int // 0 when no HTTP response was received
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("wolfram: %s upstream %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("wolfram: %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Client is the outbound surface of the gateway. One method per sub-API.
type Client interface {
	Query(ctx context.Context, input string, opts *QueryOptions) (*QueryResult, error)
	Simple(ctx context.Context, input string, opts *QueryOptions) ([]byte, error)
	ShortAnswer(ctx context.Context, input string, opts *QueryOptions) (string, error)
	Spoken(ctx context.Context, input string, opts *QueryOptions) (string, error)
	Converse(ctx context.Context, input, conversationID string) (*ConverseResult, error)
}
