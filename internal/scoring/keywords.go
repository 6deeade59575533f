package scoring

import (
	"regexp"
	"strings"
)

// category maps a listing type to the query words that ask for it.
type category struct {
	name     string
	keywords []string
}

var categories = []category{
	{"магазин", []string{"магазин", "торговля", "продажа", "ритейл", "розница"}},
	{"офис", []string{"офис", "кабинет", "бизнес", "контора", "администрат"}},
	{"склад", []string{"склад", "хранение", "логистика", "складской", "ангар"}},
	{"кафе", []string{"кафе", "ресторан", "общепит", "кофейня", "бар"}},
	{"производство", []string{"производство", "цех", "завод", "мастерская", "фабрика"}},
	{"салон", []string{"салон", "красота", "парикмахерская", "студия", "спа"}},
}

const (
	// learnedPatternMinFreq is the exclusive frequency a mined pattern needs
	// before it extends a category's keywords.
	learnedPatternMinFreq = 5

	// categoryPrefixRunes is how many leading runes a pattern shares with a
	// category name to extend it.
	categoryPrefixRunes = 4
)

// sizeBucket is a qualitative area range, bounds inclusive.
type sizeBucket struct {
	word     string
	min, max float64
}

// Checked in order: "небольшой" must come before any bucket it contains.
var sizeBuckets = []sizeBucket{
	{"маленький", 0, 50},
	{"небольшой", 50, 100},
	{"средний", 100, 200},
	{"большой", 200, 500},
}

// Checked in order: "недорого" must come before "дорого".
var priceWords = []string{"дешево", "недорого", "дорого", "премиум"}

// feature is a query keyword set and the item predicate it asks for.
type feature struct {
	name     string
	keywords []string
	has      func(Item) bool
}

var features = []feature{
	{"parking", []string{"парковк", "стоянк", "паркинг"}, func(it Item) bool { return it.HasParking }},
	{"storage", []string{"кладов", "подсобк", "хранени"}, func(it Item) bool { return it.HasStorage }},
	{"center", []string{"центр"}, func(it Item) bool { return strings.Contains(strings.ToLower(it.Location), "центр") }},
	{"metro", []string{"метро"}, func(it Item) bool { return strings.Contains(strings.ToLower(it.Location), "метро") }},
	{"first_floor", []string{"первый этаж", "первом этаже", "1 этаж"}, func(it Item) bool { return it.Floor == 1 }},
}

var numberPattern = regexp.MustCompile(`\d+`)

// Preference key builders.
func priceKey(word string) string   { return "price_" + word }
func featureKey(name string) string { return "feature_" + name }

// TypeKey is the preference key for a listing category.
func TypeKey(category string) string {
	return "type_" + strings.ToLower(strings.TrimSpace(category))
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// runePrefix returns the first n runes of s.
func runePrefix(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}
