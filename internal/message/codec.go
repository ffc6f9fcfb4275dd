// Package message defines the structured messages that cross the shared
// directory (spec section 3) and their text/binary encodings (spec
// section 6). Binary messages (".dat" files) use msgpack; everything
// else is newline-free JSON. Both codecs round-trip field-for-field
// (spec section 8's round-trip property).
package message

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const binarySuffix = ".dat"

// IsBinaryPath reports whether path names a binary-encoded message file
// (spec section 6: "Files whose name ends with .dat are binary-encoded").
func IsBinaryPath(path string) bool {
	return strings.HasSuffix(path, binarySuffix)
}

// WriteMessage encodes v and writes it to path, selecting the codec from
// path's suffix.
func WriteMessage(path string, v interface{}) error {
	var data []byte
	var err error

	if IsBinaryPath(path) {
		data, err = msgpack.Marshal(v)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return errors.Wrap(err, "encoding message")
	}

	return os.WriteFile(path, data, 0o644)
}

// ReadMessage reads path and decodes it into v, selecting the codec from
// path's suffix. Per spec section 6, a decode failure is reported to the
// caller so it can log-and-skip rather than abort a batch.
func ReadMessage(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading message")
	}

	if IsBinaryPath(path) {
		return errors.Wrap(msgpack.Unmarshal(data, v), "decoding binary message")
	}

	return errors.Wrap(json.Unmarshal(data, v), "decoding text message")
}

// UnmarshalText decodes data as a text-format (JSON) message regardless
// of the source path's suffix, used for analysis descriptors which are
// always text format (spec section 4.3 step 3).
func UnmarshalText(data []byte, v interface{}) error {
	return errors.Wrap(json.Unmarshal(data, v), "decoding text message")
}

// ReadCapped reads at most cap+1 bytes from path, returning (nil, false)
// if the file is larger than cap (spec section 8 boundary behavior: "a
// file larger than the cap returns 'no contents' rather than a truncated
// value").
func ReadCapped(path string, cap int64) ([]byte, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, false
	}
	if info.Size() > cap {
		return nil, false
	}

	data, err := io.ReadAll(io.LimitReader(f, cap+1))
	if err != nil {
		return nil, false
	}
	return data, true
}
