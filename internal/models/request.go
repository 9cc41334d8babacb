package models

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	errInvalidJSON    = errors.New("request body must be valid JSON")
	errNotObject      = errors.New("request body must be a JSON object")
	errMissingModel   = errors.New("field 'model' is required and must be a non-empty string")
	errMissingMessage = errors.New("field 'messages' is required and must be an array")
	errInvalidStream  = errors.New("field 'stream' must be a boolean")
)

// ChatRequest is a validated chat completion request. Payload holds the body
// that is forwarded upstream.
type ChatRequest struct {
	Model    string
	Messages int
	Stream   bool
	Payload  []byte
}

// ParseChatRequest validates body and builds the outbound payload. Members
// whose value is null are dropped from the top level and from each message;
// all other keys and raw values are kept in their original order and bytes.
// A key repeated within one object resolves to its last occurrence, both for
// validation and in the payload.
func ParseChatRequest(body []byte) (ChatRequest, error) {
	if !gjson.ValidBytes(body) {
		return ChatRequest{}, errInvalidJSON
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return ChatRequest{}, errNotObject
	}
	fields := members(root)

	model := lookup(fields, "model")
	if model.Type != gjson.String || model.Str == "" {
		return ChatRequest{}, errMissingModel
	}

	messages := lookup(fields, "messages")
	if !messages.IsArray() {
		return ChatRequest{}, errMissingMessage
	}

	msgs := messages.Array()
	for i, msg := range msgs {
		if err := validateMessage(i, msg); err != nil {
			return ChatRequest{}, err
		}
	}

	req := ChatRequest{
		Model:    model.Str,
		Messages: len(msgs),
	}

	switch stream := lookup(fields, "stream"); stream.Type {
	case gjson.True:
		req.Stream = true
	case gjson.False, gjson.Null:
	default:
		return ChatRequest{}, errInvalidStream
	}

	req.Payload = buildPayload(fields, len(root.Raw))
	return req, nil
}

func validateMessage(index int, msg gjson.Result) error {
	if !msg.IsObject() {
		return fmt.Errorf("messages[%d] must be an object", index)
	}
	if role := lookup(members(msg), "role"); role.Type != gjson.String || role.Str == "" {
		return fmt.Errorf("messages[%d].role is required and must be a string", index)
	}
	return nil
}

type member struct {
	key   gjson.Result
	value gjson.Result
}

// members lists the members of obj, keeping only the last occurrence of a
// repeated key at the position where that occurrence appears.
func members(obj gjson.Result) []member {
	var all []member
	obj.ForEach(func(key, value gjson.Result) bool {
		all = append(all, member{key: key, value: value})
		return true
	})

	last := make(map[string]int, len(all))
	for i, m := range all {
		last[m.key.Str] = i
	}

	out := all[:0]
	for i, m := range all {
		if last[m.key.Str] == i {
			out = append(out, m)
		}
	}
	return out
}

// lookup returns the value stored under key, or a zero Result when absent.
func lookup(fields []member, key string) gjson.Result {
	for _, m := range fields {
		if m.key.Str == key {
			return m.value
		}
	}
	return gjson.Result{}
}

func buildPayload(fields []member, size int) []byte {
	var buf bytes.Buffer
	buf.Grow(size)

	writeObject(&buf, fields, func(key string, value gjson.Result) bool {
		if key != "messages" {
			return false
		}
		buf.WriteByte('[')
		for i, msg := range value.Array() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeObject(&buf, members(msg), nil)
		}
		buf.WriteByte(']')
		return true
	})

	return buf.Bytes()
}

// writeObject writes fields into buf without null members. When custom is set
// it may write a member value itself and return true.
func writeObject(buf *bytes.Buffer, fields []member, custom func(key string, value gjson.Result) bool) {
	buf.WriteByte('{')
	n := 0
	for _, m := range fields {
		if m.value.Type == gjson.Null {
			continue
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(m.key.Raw)
		buf.WriteByte(':')
		if custom == nil || !custom(m.key.Str, m.value) {
			buf.WriteString(m.value.Raw)
		}
		n++
	}
	buf.WriteByte('}')
}
