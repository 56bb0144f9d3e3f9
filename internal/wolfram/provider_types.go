package wolfram

import (
	"bytes"
	"encoding/json"
)

// Wire shape of the full-query response. Several fields are polymorphic on
// the remote side (error is `false` or an object, assumptions/warnings are a
// single object or an array), so they arrive as raw JSON and get normalized
// before the public QueryResult is built.
type providerQueryEnvelope struct {
	QueryResult providerQueryResult `json:"queryresult"`
}

type providerQueryResult struct {
	Success     bool            `json:"success"`
	Error       json.RawMessage `json:"error"`
	NumPods     int             `json:"numpods"`
	DataTypes   string          `json:"datatypes"`
	Timing      float64         `json:"timing"`
	Pods        []providerPod   `json:"pods"`
	Assumptions json.RawMessage `json:"assumptions"`
	Warnings    json.RawMessage `json:"warnings"`
}

type providerPod struct {
	Title   string           `json:"title"`
	Scanner string           `json:"scanner"`
	ID      string           `json:"id"`
	Primary bool             `json:"primary"`
	SubPods []providerSubPod `json:"subpods"`
}

type providerSubPod struct {
	Title     string `json:"title"`
	PlainText string `json:"plaintext"`
}

type providerErrorDetail struct {
	Code json.Number `json:"code"`
	Msg  string      `json:"msg"`
}

// Wire shape of one conversational turn. The error field is only present on
// failed turns and is a bare string.
type providerConverseResponse struct {
	Result         string `json:"result"`
	ConversationID string `json:"conversationID"`
	Host           string `json:"host"`
	Error          string `json:"error"`
}

// errorFlag reports whether the raw error field signals a remote-side
// failure, along with the message when one is attached.
func errorFlag(raw json.RawMessage) (bool, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("false")) || bytes.Equal(raw, []byte("null")) {
		return false, ""
	}
	if bytes.Equal(raw, []byte("true")) {
		return true, ""
	}
	var detail providerErrorDetail
	if err := json.Unmarshal(raw, &detail); err == nil {
		return true, detail.Msg
	}
	return true, ""
}

// decodeAssumptions accepts either a single assumption object or an array.
func decodeAssumptions(raw json.RawMessage) []Assumption {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	var many []Assumption
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	var one Assumption
	if err := json.Unmarshal(raw, &one); err == nil {
		return []Assumption{one}
	}
	return nil
}

// decodeWarnings accepts either a single warning object or an array.
func decodeWarnings(raw json.RawMessage) []Warning {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	var many []Warning
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	var one Warning
	if err := json.Unmarshal(raw, &one); err == nil {
		return []Warning{one}
	}
	return nil
}
