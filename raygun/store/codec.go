package store

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/sthembisoo/raygun4go/raygun/messages"
)

func encodeMessage(msg *messages.Message) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}
	return zstdCompress(nil, raw), nil
}

func decodeMessage(payload []byte) (*messages.Message, error) {
	raw, err := zstdDecompress(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress entry: %w", err)
	}
	var msg messages.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &msg, nil
}

func zstdCompress(dst, data []byte) []byte {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		panic(err) // only fails on invalid options
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, dst)
}

func zstdDecompress(dst, data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, dst)
}
