package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	outputKey = "output"
	errorKey  = "error"
)

var (
	// ErrEmptyInput is returned when stdin closes without a payload.
	ErrEmptyInput = errors.New("plugin input is empty")
	// ErrNoResult is returned when a plugin output carries neither output nor error.
	ErrNoResult = errors.New("plugin output has neither output nor error")
)

// EncodeInput serializes the invocation payload to w (host side).
func EncodeInput(w io.Writer, in *PluginInput) error {
	if in == nil {
		return fmt.Errorf("encode input: nil input")
	}
	if err := json.NewEncoder(w).Encode(in); err != nil {
		return fmt.Errorf("failed to encode input: %w", err)
	}
	return nil
}

// DecodeInput reads r to EOF and parses the invocation payload (plugin side).
// A malformed payload is an error; there is no fallback.
func DecodeInput(r io.Reader) (*PluginInput, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyInput
	}

	var in PluginInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	if in.Args == nil {
		in.Args = ArgsMap{}
	}
	return &in, nil
}

// EncodeOutput writes the result payload followed by a newline.
func EncodeOutput(w io.Writer, out *PluginOutput) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// DecodeOutput parses a result payload strictly (host side).
func DecodeOutput(r io.Reader) (*PluginOutput, error) {
	out, _, err := DecodeOutputLenient(r)
	return out, err
}

// DecodeOutputLenient is like DecodeOutput but also returns the raw bytes so
// callers can surface whatever the plugin printed when decoding fails.
func DecodeOutputLenient(r io.Reader) (*PluginOutput, []byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read output: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, data, fmt.Errorf("plugin produced no output on stdout")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var out PluginOutput
	if err := dec.Decode(&out); err != nil {
		return nil, data, fmt.Errorf("plugin output is not valid JSON: %w", err)
	}
	// Only one payload is allowed on stdout.
	if dec.More() {
		return nil, data, fmt.Errorf("plugin wrote more than one payload to stdout")
	}
	return &out, data, nil
}

// MarshalJSON renders the output as a flat object: extra keys first, then
// exactly one of "output" or "error".
func (o PluginOutput) MarshalJSON() ([]byte, error) {
	switch {
	case o.Output != nil && o.Error != nil:
		return nil, fmt.Errorf("plugin output has both output and error")
	case o.Output == nil && o.Error == nil:
		return nil, ErrNoResult
	}

	m := make(map[string]any, len(o.Extra)+1)
	for k, v := range o.Extra {
		if k == outputKey || k == errorKey {
			continue
		}
		m[k] = v
	}
	if o.Output != nil {
		m[outputKey] = *o.Output
	} else {
		m[errorKey] = *o.Error
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts any object carrying "output" or "error". A non-string
// output is kept as its raw JSON text.
func (o *PluginOutput) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*o = PluginOutput{}
	if v, ok := raw[errorKey]; ok && string(v) != "null" {
		s, err := rawString(v)
		if err != nil {
			return fmt.Errorf("decode error field: %w", err)
		}
		o.Error = &s
	}
	if v, ok := raw[outputKey]; ok && string(v) != "null" && o.Error == nil {
		s, err := rawString(v)
		if err != nil {
			return fmt.Errorf("decode output field: %w", err)
		}
		o.Output = &s
	}
	if o.Output == nil && o.Error == nil {
		return ErrNoResult
	}

	for k, v := range raw {
		if k == outputKey || k == errorKey {
			continue
		}
		if o.Extra == nil {
			o.Extra = make(map[string]any)
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("decode field %q: %w", k, err)
		}
		o.Extra[k] = val
	}
	return nil
}

func rawString(v json.RawMessage) (string, error) {
	if len(v) > 0 && v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(v), nil
}
