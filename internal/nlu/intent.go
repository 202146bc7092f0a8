package nlu

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	Unknown Kind = iota
	OpenFile
	SearchWeb
	SendEmail
	ChatResponse
)

func (k Kind) String() string {
	switch k {
	case OpenFile:
		return "open_file"
	case SearchWeb:
		return "search_web"
	case SendEmail:
		return "send_email"
	case ChatResponse:
		return "chat_response"
	default:
		return "unknown"
	}
}

// Intent is a decoded model reply of the form "<kind>: value: <payload>".
type Intent struct {
	Kind  Kind
	Value string
}

func (i Intent) String() string {
	return fmt.Sprintf("%s: %s %s", i.Kind, valueMarker, i.Value)
}

var (
	ErrUnknownIntent = errors.New("unknown intent")
	ErrMissingValue  = errors.New("missing value marker")
)

const valueMarker = "value:"

var kinds = []Kind{OpenFile, SearchWeb, SendEmail, ChatResponse}

// Decode parses a reply line. The payload is everything after the first
// "value:" marker, trimmed. send_email carries no required payload.
func Decode(reply string) (Intent, error) {
	s := strings.TrimSpace(reply)

	for _, k := range kinds {
		rest, ok := strings.CutPrefix(s, k.String()+":")
		if !ok {
			continue
		}

		_, value, found := strings.Cut(rest, valueMarker)
		if !found {
			if k == SendEmail {
				return Intent{Kind: k}, nil
			}
			return Intent{Kind: k}, fmt.Errorf("%w in %s reply", ErrMissingValue, k)
		}
		return Intent{Kind: k, Value: strings.TrimSpace(value)}, nil
	}

	return Intent{}, fmt.Errorf("%w: %q", ErrUnknownIntent, s)
}
