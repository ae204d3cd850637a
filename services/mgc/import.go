package mgc

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"sgassist/lib/scrapers/steamgifts/games"
	"sgassist/lib/textutil"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Override names accepted as [name="value"] on an import line.
const (
	OverrideCountries   = "countries"
	OverrideStartTime   = "startTime"
	OverrideEndTime     = "endTime"
	OverrideWhoCanEnter = "whoCanEnter"
	OverrideGroups      = "groups"
	OverrideLevel       = "level"
	OverrideDescription = "description"
)

const (
	anyCountry  = "*"
	myWhitelist = "My Whitelist"
)

type tokenKind int

const (
	wordToken tokenKind = iota
	keyToken
	// linkToken is any url other than a store link, gift links count as keys
	linkToken
	storeToken
)

type token struct {
	kind tokenKind
	text string
}

var (
	overrideRegex = regexp.MustCompile(`\[(.+?)="(.+?)"\]`)
	keyRegex      = regexp.MustCompile(`^\w{5}(-\w{5}){2,}$`)
	linkRegex     = regexp.MustCompile(`^https?://`)
	storeRegex    = regexp.MustCompile(`^https?://.*?store\.steampowered\.com`)
	copiesRegex   = regexp.MustCompile(`^(.*?)\s*\((\d+)\sCopies\)$`)
	listSeparator = regexp.MustCompile(`,\s`)
)

func tokenize(text string) []token {
	var tokens []token
	for _, field := range strings.Fields(text) {
		t := token{kind: wordToken, text: field}
		switch {
		case storeRegex.MatchString(field):
			t.kind = storeToken
		case linkRegex.MatchString(field):
			t.kind = linkToken
		case keyRegex.MatchString(field):
			t.kind = keyToken
		}
		tokens = append(tokens, t)
	}
	return tokens
}

func (t token) isKey() bool {
	return t.kind == keyToken || t.kind == linkToken
}

// Line is one parsed import line.
type Line struct {
	Raw       string
	Overrides map[string]string
	Steam     *games.Steam
	// Keys is empty for gift lines.
	Keys   []string
	Name   string
	Copies int
}

func (l Line) IsKey() bool {
	return len(l.Keys) > 0
}

func joinWords(tokens []token) string {
	var words []string
	for _, t := range tokens {
		if t.kind == storeToken {
			continue
		}
		words = append(words, t.text)
	}
	return strings.Join(words, " ")
}

func keysOf(tokens []token) []string {
	keys := make([]string, len(tokens))
	for i, t := range tokens {
		keys[i] = t.text
	}
	return keys
}

// ParseLine reads "keys name", "name keys" or "name (N Copies)" with any
// number of [name="value"] overrides and an optional store link anywhere.
func ParseLine(raw string) (Line, error) {
	line := Line{Raw: raw, Overrides: map[string]string{}}
	for _, match := range overrideRegex.FindAllStringSubmatch(raw, -1) {
		line.Overrides[match[1]] = match[2]
	}
	if steam, ok := games.ParseStoreLink(raw); ok {
		line.Steam = &steam
	}

	body := strings.TrimSpace(overrideRegex.ReplaceAllString(raw, ""))
	tokens := tokenize(body)
	if len(tokens) == 0 {
		return Line{}, &MalformedLineError{Line: raw}
	}

	lead := 0
	for lead < len(tokens) && tokens[lead].isKey() {
		lead++
	}
	trail := len(tokens)
	for trail > 0 && tokens[trail-1].isKey() {
		trail--
	}

	switch {
	case lead > 0 && lead < len(tokens):
		line.Keys = keysOf(tokens[:lead])
		line.Name = joinWords(tokens[lead:])
	case trail > 0 && trail < len(tokens):
		line.Keys = keysOf(tokens[trail:])
		line.Name = joinWords(tokens[:trail])
	default:
		line.Name = joinWords(tokens)
		line.Copies = 1
		if match := copiesRegex.FindStringSubmatch(line.Name); match != nil {
			line.Name = match[1]
			line.Copies, _ = strconv.Atoi(match[2])
		}
	}

	if line.Name == "" && line.Steam == nil {
		return Line{}, &MalformedLineError{Line: raw}
	}
	return line, nil
}

// Importer turns lines of text into queued giveaways, one game lookup
// per line, filling whatever a line does not override from the form.
type Importer struct {
	site     games.Ajax
	queue    *Queue
	form     Form
	prompter Prompter
	opts     Options
	resolver *resolver
}

func NewImporter(site games.Ajax, queue *Queue, form Form, prompter Prompter, opts Options) *Importer {
	return &Importer{
		site:     site,
		queue:    queue,
		form:     form,
		prompter: prompter,
		opts:     opts,
		resolver: newResolver(site, prompter),
	}
}

type ImportResult struct {
	Added []Entry
	// Remaining are the lines left to import after a failure, in order.
	Remaining []string
}

// Import queues every non blank line of text. It stops at the first line
// that cannot be queued and returns the lines not yet imported with the
// error, so they can be corrected and imported again.
func (im *Importer) Import(ctx context.Context, text string) (ImportResult, error) {
	ctx, span := tracer.Start(ctx, "Import")
	defer span.End()

	var pending []string
	for _, raw := range strings.Split(strings.TrimSpace(text), "\n") {
		raw = strings.TrimSpace(raw)
		if raw != "" {
			pending = append(pending, raw)
		}
	}
	span.SetAttributes(attribute.Int("lines", len(pending)))

	result := ImportResult{}
	for len(pending) > 0 {
		consumed, entry, err := im.importNext(ctx, pending)
		if err != nil {
			result.Remaining = pending
			span.RecordError(err)
			span.SetStatus(codes.Error, "import stopped")
			return result, err
		}
		result.Added = append(result.Added, entry)

		rest := pending[:0:0]
		for i, raw := range pending {
			if !consumed[i] {
				rest = append(rest, raw)
			}
		}
		pending = rest
	}
	return result, nil
}

func (im *Importer) importNext(ctx context.Context, pending []string) (map[int]bool, Entry, error) {
	line, err := ParseLine(pending[0])
	if err != nil {
		return nil, Entry{}, err
	}

	desc := im.form.Defaults.Description
	if override, ok := line.Overrides[OverrideDescription]; ok {
		desc = override
	}
	err = im.queue.validateDescription(desc)
	if err != nil {
		return nil, Entry{}, err
	}

	game, err := im.resolver.resolve(ctx, line, true)
	if err != nil {
		return nil, Entry{}, err
	}

	values := im.valuesFor(line)
	values.GameId = game.Id
	values.GameName = game.Name
	if game.Steam.Valid() {
		steam := game.Steam
		values.Steam = &steam
	}

	consumed := map[int]bool{0: true}
	if line.IsKey() && (im.opts.GroupKeys || im.opts.GroupAllKeys) {
		for k := 1; k < len(pending); k++ {
			next, err := ParseLine(pending[k])
			if err == nil && next.IsKey() && im.sameGame(ctx, line, game, next) {
				values.Keys = append(values.Keys, next.Keys...)
				consumed[k] = true
				continue
			}
			if !im.opts.GroupAllKeys {
				break
			}
		}
	}

	entry, err := im.queue.AddOrEdit(ctx, values, uuid.Nil)
	if err != nil {
		return nil, Entry{}, err
	}
	slog.DebugContext(ctx, "imported giveaway", "game", game.Name, "lines", len(consumed))
	return consumed, entry, nil
}

// sameGame compares by name or store link first and falls back to what
// the site resolves next to, without prompting.
func (im *Importer) sameGame(ctx context.Context, line Line, game games.Game, next Line) bool {
	if line.Name != "" && textutil.NormalizeName(line.Name) == textutil.NormalizeName(next.Name) {
		return true
	}
	if line.Steam != nil && next.Steam != nil && *line.Steam == *next.Steam {
		return true
	}
	other, err := im.resolver.resolve(ctx, next, false)
	return err == nil && other.Id == game.Id
}

func (im *Importer) valuesFor(line Line) Values {
	d := im.form.Defaults
	v := Values{
		StartTime:   d.StartTime,
		EndTime:     d.EndTime,
		WhoCanEnter: d.WhoCanEnter,
		Countries:   d.Countries,
		Region:      d.Region,
		Whitelist:   d.Whitelist,
		Groups:      d.Groups,
		Level:       d.Level,
		Description: d.Description,
	}
	if line.IsKey() {
		v.GameType = Key
		v.Keys = line.Keys
	} else {
		v.GameType = Gift
		v.Copies = line.Copies
	}

	o := line.Overrides
	if countries, ok := o[OverrideCountries]; ok {
		if countries == anyCountry {
			v.Countries = nil
			v.Region = false
		} else {
			v.Countries = idsBySuffix(im.form.Countries, listSeparator.Split(countries, -1))
			v.Region = true
		}
	}
	if groups, ok := o[OverrideGroups]; ok {
		var names []string
		for _, name := range listSeparator.Split(groups, -1) {
			if name == myWhitelist {
				v.Whitelist = true
				continue
			}
			names = append(names, name)
		}
		v.Groups = idsBySuffix(im.form.Groups, names)
	}
	if start, ok := o[OverrideStartTime]; ok {
		v.StartTime = start
	}
	if end, ok := o[OverrideEndTime]; ok {
		v.EndTime = end
	}
	if who, ok := o[OverrideWhoCanEnter]; ok {
		v.WhoCanEnter = WhoCanEnter(who)
	}
	if level, ok := o[OverrideLevel]; ok {
		n, err := strconv.Atoi(level)
		if err == nil {
			v.Level = n
		}
	}
	if desc, ok := o[OverrideDescription]; ok {
		v.Description = strings.ReplaceAll(desc, `\n`, "\n")
	}
	return v
}

// resolver looks games up through the autocomplete and remembers what it
// found, including the choices the user made.
type resolver struct {
	site     games.Ajax
	prompter Prompter
	cache    map[string]games.Game
}

func newResolver(site games.Ajax, prompter Prompter) *resolver {
	return &resolver{site: site, prompter: prompter, cache: map[string]games.Game{}}
}

func lookupKey(line Line) string {
	if line.Steam != nil {
		return fmt.Sprintf("%s/%s", line.Steam.Type, line.Steam.Id)
	}
	return textutil.NormalizeName(line.Name)
}

var errAmbiguous = fmt.Errorf("more than one game matches")

// resolve picks the exact store match when the line has a store link,
// otherwise the only game named like the line. Several games with that
// name are left to the user when prompt is set.
func (r *resolver) resolve(ctx context.Context, line Line, prompt bool) (games.Game, error) {
	key := lookupKey(line)
	if game, ok := r.cache[key]; ok {
		return game, nil
	}

	steamId := ""
	if line.Steam != nil {
		steamId = line.Steam.Id
	}
	found, err := games.Search(ctx, r.site, line.Name, steamId)
	if err != nil {
		return games.Game{}, err
	}

	name := textutil.NormalizeName(line.Name)
	var matches []games.Game
	for _, game := range found {
		if line.Steam != nil && game.Steam == *line.Steam {
			r.cache[key] = game
			return game, nil
		}
		if line.Steam == nil && textutil.NormalizeName(game.Name) == name {
			matches = append(matches, game)
		}
	}

	switch {
	case len(matches) == 1:
		r.cache[key] = matches[0]
		return matches[0], nil
	case len(matches) > 1:
		if !prompt {
			return games.Game{}, errAmbiguous
		}
		title := fmt.Sprintf("There are %d matches for %s. Please select the correct match.", len(matches), line.Name)
		i, err := r.prompter.Choose(ctx, title, matches)
		if err != nil {
			return games.Game{}, err
		}
		if i < 0 || i >= len(matches) {
			return games.Game{}, ErrCancelled
		}
		r.cache[key] = matches[i]
		return matches[i], nil
	}

	notFound := &NotFoundError{Line: line.Raw, Name: line.Name}
	if notFound.Name == "" && line.Steam != nil {
		notFound.Name = line.Steam.StoreUrl()
	}
	names := make([]string, len(found))
	for i, game := range found {
		names[i] = game.Name
	}
	if suggestion, _, ok := textutil.ClosestMatch(line.Name, names); ok {
		notFound.Suggestion = suggestion
	}
	return games.Game{}, notFound
}
