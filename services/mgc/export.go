package mgc

import (
	"fmt"
	"strings"

	"dario.cat/mergo"
)

// Export writes the queue as a plain list, one gift per line or one line
// per key. With reverse the key comes before the game name.
func Export(entries []Entry, reverse bool) string {
	var b strings.Builder
	for _, e := range entries {
		v := e.Values
		if v.GameType == Gift {
			if v.Copies > 1 {
				fmt.Fprintf(&b, "%s (%d Copies)\r\n", v.GameName, v.Copies)
			} else {
				fmt.Fprintf(&b, "%s\r\n", v.GameName)
			}
			continue
		}
		for _, key := range v.Keys {
			if reverse {
				fmt.Fprintf(&b, "%s %s\r\n", key, v.GameName)
			} else {
				fmt.Fprintf(&b, "%s %s\r\n", v.GameName, key)
			}
		}
	}
	return b.String()
}

// FormatInputs are the pieces the description snippets are built from,
// empty fields fall back to DefaultFormatInputs.
type FormatInputs struct {
	PreviousPrefix string `json:"previous_prefix"`
	Previous       string `json:"previous"`
	PreviousSuffix string `json:"previous_suffix"`
	Separator      string `json:"separator"`
	NextPrefix     string `json:"next_prefix"`
	Next           string `json:"next"`
	NextSuffix     string `json:"next_suffix"`
	Counter        string `json:"counter"`
	Bump           string `json:"bump"`
	Train          string `json:"train"`
	// Bare drops the prefixes and suffixes around the link texts.
	Bare bool `json:"bare"`
}

var DefaultFormatInputs = FormatInputs{
	PreviousPrefix: "← ",
	Previous:       "Previous",
	PreviousSuffix: " ←",
	Separator:      " | ",
	NextPrefix:     "→ ",
	Next:           "Next",
	NextSuffix:     " →",
	Counter:        " of ",
	Bump:           "Bump",
	Train:          "Choo choo!",
}

// Snippet is a format to paste into a description and the markdown it
// turns into.
type Snippet struct {
	Code    string
	Preview string
}

type Formats struct {
	Links   Snippet
	Counter Snippet
	Bump    Snippet
	Train   Snippet
}

func linkSnippet(tag, prefix, text, suffix string) Snippet {
	if prefix == "" && suffix == "" {
		return Snippet{
			Code:    fmt.Sprintf("[ESGST-%s]%s[/ESGST-%s]", tag, text, tag),
			Preview: fmt.Sprintf("[%s](#)", text),
		}
	}
	return Snippet{
		Code:    fmt.Sprintf("[ESGST-%s]%s[%s]%s[/%s]%s[/ESGST-%s]", tag, prefix, tag, text, tag, suffix, tag),
		Preview: fmt.Sprintf("%s[%s](#)%s", prefix, text, suffix),
	}
}

// GenerateFormats builds the train snippets out of in.
func GenerateFormats(in FormatInputs) (Formats, error) {
	err := mergo.Merge(&in, DefaultFormatInputs)
	if err != nil {
		return Formats{}, err
	}
	if in.Bare {
		in.PreviousPrefix, in.PreviousSuffix = "", ""
		in.NextPrefix, in.NextSuffix = "", ""
	}

	previous := linkSnippet("P", in.PreviousPrefix, in.Previous, in.PreviousSuffix)
	next := linkSnippet("N", in.NextPrefix, in.Next, in.NextSuffix)
	return Formats{
		Links: Snippet{
			Code:    previous.Code + in.Separator + next.Code,
			Preview: previous.Preview + in.Separator + next.Preview,
		},
		Counter: Snippet{
			Code:    fmt.Sprintf("[ESGST-C]%s[/ESGST-C]", in.Counter),
			Preview: fmt.Sprintf("1%s10", in.Counter),
		},
		Bump: Snippet{
			Code:    fmt.Sprintf("[ESGST-B]%s[/ESGST-B]", in.Bump),
			Preview: fmt.Sprintf("[%s](#)", in.Bump),
		},
		Train: Snippet{
			Code:    fmt.Sprintf("[ESGST-T]%s[/ESGST-T]", in.Train),
			Preview: fmt.Sprintf("[%s](#)", in.Train),
		},
	}, nil
}
