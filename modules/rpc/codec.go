// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"
)

// Frames are "<length>#<json>". The length counts UTF-16 code units of the
// JSON text, not bytes, because the peers measure JavaScript string length.
const frameDelimiter = '#'

// maxFrameUnits bounds a single inbound frame.
const maxFrameUnits = 16 << 20

var ErrCorruptFrame = errors.New("rpc: corrupt frame")

type (
	// Pattern routes a message to a handler on the remote side,
	// e.g. {"role": "alimento", "cmd": "getById"}.
	Pattern map[string]string

	request struct {
		Pattern string `json:"pattern"`
		Data    any    `json:"data"`
		ID      string `json:"id"`
	}

	// reply is one inbound packet. Presence of each field matters, so it is
	// decoded from a map rather than a struct.
	reply struct {
		ID          string
		Response    json.RawMessage
		HasResponse bool
		Err         json.RawMessage
		HasErr      bool
		Disposed    bool
	}
)

// Route is the wire form of the pattern: JSON with keys in sorted order.
func (p Pattern) Route() string {
	// encoding/json sorts map keys
	bs, _ := json.Marshal(map[string]string(p))
	return string(bs)
}

func (p Pattern) String() string { return p.Route() }

func utf16Len(bs []byte) int {
	n := 0
	for len(bs) > 0 {
		r, size := utf8.DecodeRune(bs)
		bs = bs[size:]
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func appendFrame(dst, payload []byte) []byte {
	dst = strconv.AppendInt(dst, int64(utf16Len(payload)), 10)
	dst = append(dst, frameDelimiter)
	return append(dst, payload...)
}

func encodeRequest(id string, pattern Pattern, data any) ([]byte, error) {
	payload, err := json.Marshal(request{Pattern: pattern.Route(), Data: data, ID: id})
	if err != nil {
		return nil, fmt.Errorf("rpc: encode request: %w", err)
	}
	return appendFrame(nil, payload), nil
}

type frameReader struct {
	r *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReader(r)}
}

// next returns the JSON payload of the next frame.
func (f *frameReader) next() ([]byte, error) {
	head, err := f.r.ReadString(frameDelimiter)
	if err != nil {
		return nil, err
	}
	units, err := strconv.Atoi(head[:len(head)-1])
	if err != nil || units < 0 || units > maxFrameUnits {
		return nil, fmt.Errorf("%w: bad length %q", ErrCorruptFrame, head)
	}

	var buf bytes.Buffer
	buf.Grow(units)
	for read := 0; read < units; {
		r, _, err := f.r.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		buf.WriteRune(r)
		if r >= 0x10000 {
			read += 2
		} else {
			read++
		}
	}
	return buf.Bytes(), nil
}

func decodeReply(payload []byte) (reply, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return reply{}, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}

	var rep reply
	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &rep.ID); err != nil {
			return reply{}, fmt.Errorf("%w: id: %v", ErrCorruptFrame, err)
		}
	}
	// JSON null means the handler answered with nothing.
	if raw, ok := fields["response"]; ok {
		rep.HasResponse = true
		if !isNull(raw) {
			rep.Response = raw
		}
	}
	if raw, ok := fields["err"]; ok && !isNull(raw) {
		rep.HasErr = true
		rep.Err = raw
	}
	if raw, ok := fields["isDisposed"]; ok {
		_ = json.Unmarshal(raw, &rep.Disposed)
	}
	return rep, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
