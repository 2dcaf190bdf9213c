package translit

// Gurmukhi code points with a special role in the scan.
const (
	virama      = '\u0A4D' // ੍
	bindi       = '\u0A02' // ਂ
	tippi       = '\u0A70' // ੰ
	candrabindu = '\u0A01' // ਁ

	// nasal is appended to the previous token for any nasalization mark.
	nasal = "ṅ"

	// inherent is the vowel every consonant carries until a matra or a
	// virama resolves it.
	inherent = "a"
)

// Gurmukhi Unicode block bounds.
const (
	blockFirst = 0x0A00
	blockLast  = 0x0A7F
)

// independentVowels are standalone vowel letters. They never carry an
// inherent vowel.
var independentVowels = map[rune]string{
	'ਅ': "a",
	'ਆ': "ā",
	'ਇ': "i",
	'ਈ': "ī",
	'ਉ': "u",
	'ਊ': "ū",
	'ਏ': "e",
	'ਐ': "ai",
	'ਓ': "o",
	'ਔ': "au",
}

// consonants map each consonant letter to its Latin base without the
// inherent vowel.
var consonants = map[rune]string{
	'ਕ': "k",
	'ਖ': "kh",
	'ਗ': "g",
	'ਘ': "gh",
	'ਙ': "ṅ",
	'ਚ': "ch",
	'ਛ': "chh",
	'ਜ': "j",
	'ਝ': "jh",
	'ਞ': "ñ",
	'ਟ': "ṭ",
	'ਠ': "ṭh",
	'ਡ': "ḍ",
	'ਢ': "ḍh",
	'ਣ': "ṇ",
	'ਤ': "t",
	'ਥ': "th",
	'ਦ': "d",
	'ਧ': "dh",
	'ਨ': "n",
	'ਪ': "p",
	'ਫ': "ph",
	'ਬ': "b",
	'ਭ': "bh",
	'ਮ': "m",
	'ਯ': "y",
	'ਰ': "r",
	'ਲ': "l",
	'ਵ': "v",
	'ਸ': "s",
	'ਹ': "h",
	'ੜ': "ṛ",

	// Precomposed nukta letters.
	'\u0A36': "sh", // ਸ਼
	'\u0A59': "kh", // ਖ਼
	'\u0A5A': "gh", // ਗ਼
	'\u0A5B': "z",  // ਜ਼
	'\u0A5E': "f",  // ਫ਼
	'\u0A33': "ḷ",  // ਲ਼
}

// matras are dependent vowel signs. Each one replaces the inherent vowel of
// the consonant it is attached to.
var matras = map[rune]string{
	'ਾ': "ā",
	'ਿ': "i",
	'ੀ': "ī",
	'ੁ': "u",
	'ੂ': "ū",
	'ੇ': "e",
	'ੈ': "ai",
	'ੋ': "o",
	'ੌ': "au",
}
