// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Module state decoded into `any` must come back as
		// map[string]any, not map[any]any, so it stays comparable
		// with freshly built Go values.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// RawMessage is an already-encoded CBOR value. Module state travels
// through the runtime in this form.
type RawMessage = cbor.RawMessage

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encode is Marshal returning a RawMessage, for building module state.
func Encode(v any) (RawMessage, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encoding %T: %w", v, err)
	}
	return RawMessage(data), nil
}

// Decode unmarshals a RawMessage produced by Encode. An empty message
// leaves v untouched.
func Decode(raw RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := decMode.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("codec: decoding into %T: %w", v, err)
	}
	return nil
}

// Diagnose renders data in CBOR diagnostic notation (RFC 8949 §8).
// Used by the snapshot inspection path and by tests.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
