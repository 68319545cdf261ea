// Package tag encodes and decodes the client tag that marks a broker trade as
// belonging to a basket leg: {prefix}-{symbol}-{model}-{nonce}.
package tag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"weekly-basket-bot/internal/types"
)

const (
	DefaultPrefix = "uni"
	// MaxLen is the broker's limit for client extension strings.
	MaxLen   = 64
	nonceLen = 8
)

var ErrInvalid = errors.New("invalid tag")

type Tag struct {
	Prefix string
	Symbol string
	Model  types.Model
	Nonce  string
}

// New builds a tag with a fresh nonce and validates it.
func New(prefix, symbol string, model types.Model) (Tag, error) {
	t := Tag{
		Prefix: prefix,
		Symbol: types.NormalizeSymbol(symbol),
		Model:  model,
		Nonce:  strings.ReplaceAll(uuid.NewString(), "-", "")[:nonceLen],
	}
	if err := t.Validate(); err != nil {
		return Tag{}, err
	}
	return t, nil
}

func (t Tag) Validate() error {
	switch {
	case t.Prefix == "" || strings.Contains(t.Prefix, "-"):
		return fmt.Errorf("%w: prefix %q", ErrInvalid, t.Prefix)
	case t.Symbol == "" || strings.Contains(t.Symbol, "-"):
		return fmt.Errorf("%w: symbol %q", ErrInvalid, t.Symbol)
	case !t.Model.Valid():
		return fmt.Errorf("%w: model %q", ErrInvalid, t.Model)
	case len(t.Nonce) != nonceLen:
		return fmt.Errorf("%w: nonce %q", ErrInvalid, t.Nonce)
	}
	if n := len(t.Encode()); n > MaxLen {
		return fmt.Errorf("%w: length %d exceeds %d", ErrInvalid, n, MaxLen)
	}
	return nil
}

func (t Tag) Encode() string {
	return t.Prefix + "-" + t.Symbol + "-" + string(t.Model) + "-" + t.Nonce
}

// Check reports whether a leg for symbol and model can carry a tag under
// prefix. The nonce does not affect the outcome.
func Check(prefix, symbol string, model types.Model) error {
	t := Tag{
		Prefix: prefix,
		Symbol: types.NormalizeSymbol(symbol),
		Model:  model,
		Nonce:  strings.Repeat("0", nonceLen),
	}
	return t.Validate()
}

// Decode parses a raw tag. Only tags carrying the expected prefix are accepted.
func Decode(raw, prefix string) (Tag, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Tag{}, fmt.Errorf("%w: empty", ErrInvalid)
	}
	parts := strings.Split(raw, "-")
	if len(parts) != 4 {
		return Tag{}, fmt.Errorf("%w: %q", ErrInvalid, raw)
	}
	if parts[0] != prefix {
		return Tag{}, fmt.Errorf("%w: prefix %q", ErrInvalid, parts[0])
	}
	t := Tag{
		Prefix: parts[0],
		Symbol: types.NormalizeSymbol(parts[1]),
		Model:  types.Model(strings.ToLower(parts[2])),
		Nonce:  parts[3],
	}
	if err := t.Validate(); err != nil {
		return Tag{}, err
	}
	return t, nil
}

// LegKey returns the basket leg a tagged trade belongs to.
func (t Tag) LegKey(dir types.Direction) types.LegKey {
	return types.LegKey{Symbol: t.Symbol, Model: t.Model, Direction: dir}
}
