package perturb

// Dictionaries backing the perturbation catalog. These are curated
// subsets of the lexicons the reference datasets were perturbed with;
// tests that need richer vocabularies can override them through the
// per-test Params.

// punctuationWhitelist is the default set considered by the
// add_punctuation and strip_punctuation tests.
var punctuationWhitelist = []string{"!", "?", ",", ".", "-", ":", ";"}

// keyboardNeighbors maps each lowercase letter to its QWERTY neighbors,
// used by add_typo to produce plausible fat-finger errors.
var keyboardNeighbors = map[byte]string{
	'a': "qwsz", 'b': "vghn", 'c': "xdfv", 'd': "serfcx", 'e': "wsdr",
	'f': "drtgvc", 'g': "ftyhbv", 'h': "gyujnb", 'i': "ujko", 'j': "huikmn",
	'k': "jiolm", 'l': "kop", 'm': "njk", 'n': "bhjm", 'o': "iklp",
	'p': "ol", 'q': "wa", 'r': "edft", 's': "awedxz", 't': "rfgy",
	'u': "yhji", 'v': "cfgb", 'w': "qase", 'x': "zsdc", 'y': "tghu",
	'z': "asx",
}

// contractionMap expands to contractions, e.g. "do not" stays natural
// while "don't" stresses tokenizers. Keys are the expanded second word
// keyed under the first; add_contraction joins adjacent word pairs.
var contractionMap = map[string]string{
	"are not":   "aren't",
	"cannot":    "can't",
	"could not": "couldn't",
	"did not":   "didn't",
	"do not":    "don't",
	"does not":  "doesn't",
	"had not":   "hadn't",
	"has not":   "hasn't",
	"have not":  "haven't",
	"he is":     "he's",
	"i am":      "i'm",
	"is not":    "isn't",
	"it is":     "it's",
	"she is":    "she's",
	"should not": "shouldn't",
	"they are":  "they're",
	"was not":   "wasn't",
	"we are":    "we're",
	"were not":  "weren't",
	"will not":  "won't",
	"would not": "wouldn't",
	"you are":   "you're",
}

// americanToBritish converts American spellings to British ones; the
// inverse map backs british_to_american.
var americanToBritish = map[string]string{
	"analyze":   "analyse",
	"apologize": "apologise",
	"behavior":  "behaviour",
	"center":    "centre",
	"color":     "colour",
	"defense":   "defence",
	"dialog":    "dialogue",
	"favorite":  "favourite",
	"fiber":     "fibre",
	"flavor":    "flavour",
	"gray":      "grey",
	"honor":     "honour",
	"humor":     "humour",
	"labor":     "labour",
	"license":   "licence",
	"liter":     "litre",
	"meter":     "metre",
	"neighbor":  "neighbour",
	"offense":   "offence",
	"organize":  "organise",
	"program":   "programme",
	"realize":   "realise",
	"recognize": "recognise",
	"theater":   "theatre",
	"traveled":  "travelled",
}

// britishToAmerican is the inverse of americanToBritish.
var britishToAmerican = invert(americanToBritish)

// ocrTypoMap substitutes character shapes OCR engines commonly confuse.
var ocrTypoMap = map[string]string{
	"and":   "anb",
	"can":   "ean",
	"do":    "bo",
	"for":   "f0r",
	"he":    "be",
	"is":    "1s",
	"it":    "1t",
	"of":    "o£",
	"on":    "om",
	"so":    "s0",
	"the":   "tbe",
	"this":  "tb1s",
	"to":    "t0",
	"was":   "wa5",
	"with":  "w1th",
	"you":   "y0u",
}

// dyslexiaMap swaps words for frequent dyslexic confusions.
var dyslexiaMap = map[string]string{
	"angel":   "angle",
	"because": "becuase",
	"does":    "dose",
	"from":    "form",
	"quiet":   "quite",
	"saw":     "was",
	"their":   "thier",
	"there":   "thier",
	"was":     "saw",
	"were":    "where",
	"which":   "wich",
	"who":     "how",
}

// abbreviationMap replaces phrases and words with informal
// abbreviations.
var abbreviationMap = map[string]string{
	"about":     "abt",
	"are":       "r",
	"at":        "@",
	"be":        "b",
	"before":    "b4",
	"great":     "gr8",
	"people":    "ppl",
	"please":    "plz",
	"see":       "c",
	"thanks":    "thx",
	"to":        "2",
	"tomorrow":  "tmrw",
	"tonight":   "2nite",
	"why":       "y",
	"you":       "u",
	"your":      "ur",
}

// speechToTextMap substitutes homophones a speech recognizer could emit.
var speechToTextMap = map[string]string{
	"ate":     "eight",
	"billed":  "build",
	"buy":     "by",
	"cell":    "sell",
	"flour":   "flower",
	"four":    "for",
	"hear":    "here",
	"knight":  "night",
	"know":    "no",
	"meat":    "meet",
	"right":   "write",
	"sea":     "see",
	"son":     "sun",
	"their":   "there",
	"to":      "too",
	"weather": "whether",
	"week":    "weak",
	"wood":    "would",
}

// slangMap replaces standard words with colloquial equivalents.
var slangMap = map[string]string{
	"amazing":   "awesome",
	"angry":     "mad",
	"attractive": "hot",
	"child":     "kid",
	"crazy":     "nuts",
	"excellent": "dope",
	"friend":    "buddy",
	"food":      "grub",
	"house":     "crib",
	"man":       "dude",
	"money":     "cash",
	"relax":     "chill",
	"tired":     "beat",
	"very":      "super",
	"yes":       "yeah",
}

// numberWords spells out single digits and round numbers for
// number_to_word.
var numberWords = map[string]string{
	"0": "zero", "1": "one", "2": "two", "3": "three", "4": "four",
	"5": "five", "6": "six", "7": "seven", "8": "eight", "9": "nine",
	"10": "ten", "11": "eleven", "12": "twelve", "20": "twenty",
	"30": "thirty", "40": "forty", "50": "fifty", "100": "hundred",
	"1000": "thousand",
}

// defaultStartingContext and defaultEndingContext are the filler
// sentences add_context attaches when the configuration supplies none.
var defaultStartingContext = []string{
	"Attention please,",
	"As reported earlier,",
	"According to sources,",
}

var defaultEndingContext = []string{
	"That is all.",
	"Thank you for reading.",
	"More details to follow.",
}

// defaultTerminology backs swap_entities when no terminology is
// configured: candidate surface forms per entity type.
var defaultTerminology = map[string][]string{
	"PER":  {"Maria Garcia", "Wei Chen", "Amadou Diallo", "Elena Petrova"},
	"LOC":  {"Nairobi", "Osaka", "Montevideo", "Tallinn"},
	"ORG":  {"Acme Corp", "Globex", "Initech", "Umbrella Group"},
	"MISC": {"Olympics", "Renaissance", "Brexit", "Eurovision"},
}

// Pronoun sets for the bias catalog.
var malePronouns = map[string]string{
	"she": "he", "her": "his", "hers": "his", "herself": "himself",
	"they": "he", "them": "him", "theirs": "his", "themselves": "himself",
}

var femalePronouns = map[string]string{
	"he": "she", "him": "her", "his": "her", "himself": "herself",
	"they": "she", "them": "her", "theirs": "hers", "themselves": "herself",
}

var neutralPronouns = map[string]string{
	"he": "they", "she": "they", "him": "them", "her": "them",
	"his": "their", "hers": "theirs", "himself": "themselves", "herself": "themselves",
}

// Country substitutions for economic-bias tests.
var toHighIncomeCountry = map[string]string{
	"afghanistan": "Switzerland",
	"chad":        "Norway",
	"ethiopia":    "Luxembourg",
	"haiti":       "Singapore",
	"malawi":      "Denmark",
	"nepal":       "Ireland",
	"somalia":     "Iceland",
	"uganda":      "Qatar",
}

var toLowIncomeCountry = invert(toHighIncomeCountry)

// interracialNames swaps first names across ethnicities to probe
// name-sensitivity.
var interracialNames = map[string]string{
	"amy":     "Aisha",
	"brad":    "Jamal",
	"emily":   "Lakisha",
	"greg":    "Darnell",
	"jake":    "Muhammad",
	"john":    "Deshawn",
	"katie":   "Priya",
	"matthew": "Tyrone",
	"sarah":   "Fatima",
	"todd":    "Rasheed",
}

// invert flips a map for the reverse-direction tests. Keys are
// lowercased for lookup; mapWithCasePreserved restores the surface
// casing on replacements.
func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[lowerKey(v)] = k
	}
	return out
}

func lowerKey(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
