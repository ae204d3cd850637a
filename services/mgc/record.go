package mgc

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"sgassist/lib/scrapers/steamgifts/games"

	"github.com/google/uuid"
)

type GameType string

const (
	Gift GameType = "gift"
	Key  GameType = "key"
)

type WhoCanEnter string

const (
	Everyone   WhoCanEnter = "everyone"
	InviteOnly WhoCanEnter = "invite_only"
	Groups     WhoCanEnter = "groups"
)

// Values is one giveaway as filled in on the creation form.
type Values struct {
	GameId   string   `json:"gameId"`
	GameName string   `json:"gameName"`
	GameType GameType `json:"gameType"`
	Copies   int      `json:"copies,omitempty"`
	Keys     []string `json:"keys,omitempty"`
	// Countries only apply when Region is set.
	Countries   []string     `json:"countries,omitempty"`
	Region      bool         `json:"region"`
	StartTime   string       `json:"startTime"`
	EndTime     string       `json:"endTime"`
	WhoCanEnter WhoCanEnter  `json:"whoCanEnter"`
	Whitelist   bool         `json:"whitelist"`
	Groups      []string     `json:"groups,omitempty"`
	Level       int          `json:"level"`
	Description string       `json:"description"`
	Steam       *games.Steam `json:"steam,omitempty"`
}

type Status string

const (
	Pending   Status = ""
	Created   Status = "created"
	Failed    Status = "failed"
	Connected Status = "connected"
)

// Entry is a queued giveaway.
type Entry struct {
	Id     uuid.UUID `json:"id"`
	Values Values    `json:"values"`
	Status Status    `json:"status,omitempty"`
	Errors []string  `json:"errors,omitempty"`
}

// Done reports whether a run already created the entry.
func (e Entry) Done() bool {
	return e.Status == Created || e.Status == Connected
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Payload is the creation form submission for v.
func (v Values) Payload(xsrfToken string, timezone int) url.Values {
	copies := v.Copies
	if copies < 1 {
		copies = 1
	}
	return url.Values{
		"xsrf_token":          {xsrfToken},
		"next_step":           {"3"},
		"game_id":             {v.GameId},
		"type":                {string(v.GameType)},
		"copies":              {strconv.Itoa(copies)},
		"key_string":          {strings.Join(v.Keys, "\n")},
		"timezone":            {strconv.Itoa(timezone)},
		"start_time":          {v.StartTime},
		"end_time":            {v.EndTime},
		"region_restricted":   {bit(v.Region)},
		"country_item_string": {strings.Join(v.Countries, " ")},
		"who_can_enter":       {string(v.WhoCanEnter)},
		"whitelist":           {bit(v.Whitelist)},
		"group_item_string":   {strings.Join(v.Groups, " ")},
		"contributor_level":   {strconv.Itoa(v.Level)},
		"description":         {v.Description},
	}
}

// Details is the multi line summary shown for a queued entry.
func (e Entry) Details() string {
	v := e.Values
	var b strings.Builder
	if len(e.Errors) > 0 {
		b.WriteString("Errors:\n")
		for _, msg := range e.Errors {
			b.WriteString(msg + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(v.GameName + "\n")
	if v.GameType == Gift {
		fmt.Fprintf(&b, "Gift\n%d Copies\n", v.Copies)
	} else {
		fmt.Fprintf(&b, "Keys\n%s\n", strings.Join(v.Keys, "\n"))
	}
	fmt.Fprintf(&b, "\n%s - %s\n", v.StartTime, v.EndTime)
	if v.Region {
		b.WriteString("Region Restricted\n")
	}
	switch v.WhoCanEnter {
	case Everyone:
		b.WriteString("Public\n")
	case InviteOnly:
		b.WriteString("Invite Only\n")
	default:
		if v.Whitelist {
			b.WriteString("Whitelist\n")
		}
		if len(v.Groups) > 0 {
			b.WriteString("Groups\n")
		}
	}
	fmt.Fprintf(&b, "Level %d\n\n%s", v.Level, v.Description)
	return b.String()
}

var (
	levelVar     = regexp.MustCompile(`(?i)\[ESGST-LEVEL\]`)
	nameVar      = regexp.MustCompile(`(?i)\[ESGST-NAME\]`)
	steamIdVar   = regexp.MustCompile(`(?i)\[ESGST-STEAM-ID\]`)
	steamTypeVar = regexp.MustCompile(`(?i)\[ESGST-STEAM-TYPE\]`)
	steamUrlVar  = regexp.MustCompile(`(?i)\[ESGST-STEAM-URL\]`)
)

// substitute fills the description variables from the rest of v.
func (v Values) substitute() Values {
	steam := games.Steam{}
	if v.Steam != nil {
		steam = *v.Steam
	}
	storeUrl := ""
	if steam.Valid() {
		storeUrl = steam.StoreUrl()
	}

	desc := v.Description
	desc = levelVar.ReplaceAllLiteralString(desc, strconv.Itoa(v.Level))
	desc = nameVar.ReplaceAllLiteralString(desc, v.GameName)
	desc = steamIdVar.ReplaceAllLiteralString(desc, steam.Id)
	desc = steamTypeVar.ReplaceAllLiteralString(desc, steam.Type.Singular())
	desc = steamUrlVar.ReplaceAllLiteralString(desc, storeUrl)
	v.Description = desc
	return v
}

// normalize drops empty list items so a stored entry reads back equal.
func (v Values) normalize() Values {
	v.Keys = compact(v.Keys)
	v.Countries = compact(v.Countries)
	v.Groups = compact(v.Groups)
	if v.GameType == Key {
		v.Copies = 0
	} else {
		v.Keys = nil
	}
	if !v.Region {
		v.Countries = nil
	}
	if v.WhoCanEnter == "" {
		v.WhoCanEnter = Everyone
	}
	return v
}

func compact(items []string) []string {
	var out []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// SummaryRow is one line of the table reviewed before creating.
type SummaryRow struct {
	No          int
	Game        string
	StoreUrl    string
	Amount      string
	StartTime   string
	EndTime     string
	Region      string
	WhoCanEnter string
	Level       int
	Description string
}

func summarize(entries []Entry, form Form) []SummaryRow {
	rows := make([]SummaryRow, 0, len(entries))
	for i, e := range entries {
		v := e.Values
		row := SummaryRow{
			No:          i + 1,
			Game:        v.GameName,
			StartTime:   v.StartTime,
			EndTime:     v.EndTime,
			Level:       v.Level,
			Description: v.Description,
		}
		if v.Steam != nil && v.Steam.Valid() {
			row.StoreUrl = fmt.Sprintf("https://store.steampowered.com/%s/%s", v.Steam.Type.Singular(), v.Steam.Id)
		}
		if v.GameType == Key {
			row.Amount = strings.Join(v.Keys, "\n")
		} else {
			row.Amount = fmt.Sprintf("%d Copies", v.Copies)
		}

		row.Region = "No"
		if v.Region {
			row.Region = fmt.Sprintf("Yes (%s)", strings.Join(form.countryNames(v.Countries), ", "))
		}

		switch v.WhoCanEnter {
		case InviteOnly:
			row.WhoCanEnter = "Invite Only"
		case Groups:
			var names []string
			if v.Whitelist {
				names = append(names, "Whitelist")
			}
			names = append(names, form.groupNames(v.Groups)...)
			row.WhoCanEnter = fmt.Sprintf("Groups (%s)", strings.Join(names, ", "))
		default:
			row.WhoCanEnter = "Everyone"
		}

		if runes := []rune(row.Description); len(runes) > 100 {
			row.Description = string(runes[:100]) + "..."
		}
		rows = append(rows, row)
	}
	return rows
}
