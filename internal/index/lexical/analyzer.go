package lexical

import (
	"strings"
	"unicode"
)

// Analyzer turns text into index terms: lowercase word tokens of two or more
// characters, optional stop-word removal, then n-grams over the remaining tokens.
type Analyzer struct {
	ngramMin  int
	ngramMax  int
	stopWords map[string]struct{}
}

// NewAnalyzer creates an analyzer for the given n-gram range.
func NewAnalyzer(ngramMin, ngramMax int, removeStopWords bool) *Analyzer {
	a := &Analyzer{ngramMin: ngramMin, ngramMax: ngramMax}
	if removeStopWords {
		a.stopWords = englishStopWords
	}
	return a
}

// Tokens splits text into lowercase word tokens, dropping stop words.
func (a *Analyzer) Tokens(text string) []string {
	var tokens []string
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		tok := strings.ToLower(text[start:end])
		start = -1
		if len([]rune(tok)) < 2 {
			return
		}
		if _, stop := a.stopWords[tok]; stop {
			return
		}
		tokens = append(tokens, tok)
	}
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return tokens
}

// Terms returns all n-gram terms of text, with repeats.
func (a *Analyzer) Terms(text string) []string {
	tokens := a.Tokens(text)
	if a.ngramMin == 1 && a.ngramMax == 1 {
		return tokens
	}
	var terms []string
	for n := a.ngramMin; n <= a.ngramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			if n == 1 {
				terms = append(terms, tokens[i])
				continue
			}
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

// englishStopWords is the classic English stop list used by common TF-IDF vectorizers.
var englishStopWords = toSet(`a about above across after afterwards again against all almost alone
along already also although always am among amongst an and another any anyhow anyone anything
anyway anywhere are around as at be became because become becomes becoming been before
beforehand behind being below beside besides between beyond both but by can cannot could did do
does doing done down due during each eg either else elsewhere enough etc even ever every
everyone everything everywhere except few for former formerly from further had has hasnt have
having he hence her here hereafter hereby herein hereupon hers herself him himself his how
however i ie if in inc indeed into is it its itself just last latter latterly least less ltd
many may me meanwhile might mine more moreover most mostly much must my myself namely neither
never nevertheless next no nobody none noone nor not nothing now nowhere of off often on once
one only onto or other others otherwise our ours ourselves out over own per perhaps please
rather re same seem seemed seeming seems several she should since so some somehow someone
something sometime sometimes somewhere still such than that the their theirs them themselves
then thence there thereafter thereby therefore therein thereupon these they this those though
through throughout thru thus to together too toward towards un under until up upon us very via
was we well were what whatever when whence whenever where whereafter whereas whereby wherein
whereupon wherever whether which while whither who whoever whole whom whose why will with
within without would yet you your yours yourself yourselves`)

func toSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}
