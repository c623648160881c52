// Package protocol defines the wire protocol spoken between the assistant
// client and server. Messages are JSON objects tagged by a "type" field,
// one closed set per direction.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ImagePayload is a base64-encoded image attachment.
type ImagePayload struct {
	Data     string `json:"data"`
	Mimetype string `json:"mimetype"`
}

// ParseError reports a frame that could not be decoded. Decode failures are
// never fatal to the caller; the frame is expected to be dropped.
type ParseError struct {
	Tag string
	Err error
}

func (e *ParseError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("protocol: cannot parse %q message: %v", e.Tag, e.Err)
	}
	return fmt.Sprintf("protocol: cannot parse message: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// envelope is used to probe the tag before decoding the full payload.
type envelope struct {
	Type string `json:"type"`
}

// encode marshals v and splices the type tag into the resulting object.
func encode(tag string, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %q: %w", tag, err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("protocol: encode %q: %w", tag, err)
	}
	tagRaw, _ := json.Marshal(tag)
	fields["type"] = tagRaw
	return json.Marshal(fields)
}

func decodeInto(tag string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &ParseError{Tag: tag, Err: err}
	}
	return nil
}
