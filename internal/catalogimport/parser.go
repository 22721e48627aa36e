package catalogimport

import (
	"strings"
	"unicode"
)

// colors maps the inflected Ukrainian color adjectives used in the legacy
// spreadsheet to catalog color names.
var colors = map[string]string{
	"рожева": "pink", "рожеві": "pink", "рожевий": "pink", "рожеве": "pink",
	"бежева": "beige", "бежеві": "beige", "бежевий": "beige",
	"молочний": "milky", "молочні": "milky", "молочна": "milky",
	"золоте": "gold", "золота": "gold", "золоті": "gold",
	"чорна": "black", "чорні": "black", "чорний": "black",
	"блакитна": "sky-blue", "блакитний": "sky-blue",
	"біле": "white", "біла": "white", "білі": "white", "білий": "white",
	"червона": "red", "червоні": "red", "червоний": "red",
	"бордова":    "burgundy",
	"коричневі":  "brown",
	"сіра":       "grey",
	"темно-сірі": "grey",
	"фіолетовий": "purple",
}

// categories maps spreadsheet category headers and single-word garment names
// to catalog categories.
var categories = map[string]string{
	"болеро":    "bolero",
	"сорочка":   "shirt",
	"кофтинка":  "sweater",
	"жакет":     "jacket",
	"шляпа":     "hat",
	"сережки":   "earrings",
	"намисто":   "necklace",
	"кулончик":  "pendant",
	"чокер":     "choker",
	"браслет":   "bracelet",
	"підвіска":  "pendant",
	"туфлі":     "shoes",
	"бантики":   "bow",
	"кейп":      "cape",
	"накидка":   "cape",
	"піджак":    "jacket",
	"боді":      "bodysuit",
	"гольф":     "turtleneck",
	"корсет":    "corset",
	"шлейф":     "train",
	"спідниця":  "skirt",
	"штани":     "trousers",
	"топ":       "top",
	"лосіни":    "leggings",
	"костюм":    "suit",
	"сукня":     "dress",
	"босоніжки": "sandals",
	"тканина":   "fabric",
	"сукні, накидки, короткі жакети, кейпи, шлейфи":   "dress-cape-jacket-train",
	"сукні, накидки, короткі жакети":                  "dress-cape-short-jacket",
	"корсети, топи, брюки, спідниці":                  "corset-top-trousers-skirt",
	"жіночі піджаки, брючні костюми, шуба":            "womensjacket-pantsuit-furcoat",
	"чоловічі костюми, сорочки, гольфи":               "suit-shirt-turtleneck",
	"весільні":                                        "wedding",
	"family  look":                                    "family-look",
	"піжами та светри":                                "pyjamas-and-sweaters",
	"дитячі речі (сукні, хлопчачі костюми та піджаки)": "kid-dress-suit-jacket",
	"трусики":                             "underwear",
	"взуття доросле":                      "shoes",
	"взуття дитяче":                       "kid-shoes",
	"рукавиці":                            "gloves",
	"квіточки":                            "flowers",
	"квіточка":                            "flowers",
	"сумочки":                             "bag",
	"сережки, прикраси на шию, браслети":  "earrings-necklace-bracelets",
	"аксесуари на голову":                 "head-accessories",
	"гетри":                               "leg-warmers",
	"комбез":                              "romper",
	"шапка":                               "hat",
	"носочки":                             "socks",
	"шуба":                                "fur-coat",
	"кардиган":                            "cardigan",
	"туніка":                              "tunic",
}

var sizes = map[string]struct{}{
	"XS": {}, "S": {}, "M": {}, "L": {}, "XL": {}, "XL+": {}, "XXL": {},
}

// Row is one item parsed from an item cell.
type Row struct {
	Title       string
	Category    string
	Color       string
	Sizes       []string
	Description string
}

// ParseItemCell extracts the inventory number, sizes, color and garment
// category from a free-text item cell such as "#112 біла сукня (S-M)".
// The raw cell is kept as the description.
func ParseItemCell(cell string) Row {
	row := Row{Description: cell}
	cleaned := strings.NewReplacer("(", " ", ")", " ", "-", " ").Replace(cell)

	seen := map[string]struct{}{}
	for _, seg := range strings.Fields(cleaned) {
		lower := strings.ToLower(seg)
		switch {
		case strings.HasPrefix(seg, "#"):
			row.Title = seg
		case isDigits(seg) && (row.Title == "" || row.Title == "#"):
			row.Title = "#" + seg
		case isSize(seg):
			if _, dup := seen[seg]; !dup {
				seen[seg] = struct{}{}
				row.Sizes = append(row.Sizes, seg)
			}
		case colors[lower] != "":
			row.Color = colors[lower]
		case categories[lower] != "":
			row.Category = categories[lower]
		}
	}
	return row
}

// ParseCategoryCell maps the first non-empty cell of a category header row.
// Unknown headers are kept verbatim.
func ParseCategoryCell(cells []string) string {
	for _, cell := range cells {
		trimmed := strings.TrimSpace(cell)
		if trimmed == "" {
			continue
		}
		if mapped, ok := categories[strings.ToLower(trimmed)]; ok {
			return mapped
		}
		return trimmed
	}
	return ""
}

func isSize(seg string) bool {
	_, ok := sizes[seg]
	return ok
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
