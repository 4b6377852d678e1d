package location

// abbreviations maps a normalized abbreviation to the full names it may stand
// for. Some abbreviations are ambiguous across regions (GA is Georgia and
// Goa) and expand to every candidate.
var abbreviations = map[string][]string{
	// countries
	"us":  {"united states"},
	"usa": {"united states"},
	"uk":  {"united kingdom", "uttarakhand"},
	"gb":  {"united kingdom"},
	"uae": {"united arab emirates"},
	"nz":  {"new zealand"},
	"ind": {"india"},

	// US states
	"al": {"alabama"}, "ak": {"alaska"}, "az": {"arizona"}, "ar": {"arkansas"},
	"ca": {"california"}, "co": {"colorado"}, "ct": {"connecticut"}, "de": {"delaware"},
	"fl": {"florida"}, "ga": {"georgia", "goa"}, "hi": {"hawaii"}, "id": {"idaho"},
	"il": {"illinois"}, "in": {"indiana"}, "ia": {"iowa"}, "ks": {"kansas"},
	"ky": {"kentucky"}, "la": {"louisiana"}, "me": {"maine"}, "md": {"maryland"},
	"ma": {"massachusetts"}, "mi": {"michigan"}, "mn": {"minnesota"}, "ms": {"mississippi"},
	"mo": {"missouri"}, "mt": {"montana"}, "ne": {"nebraska"}, "nv": {"nevada"},
	"nh": {"new hampshire"}, "nj": {"new jersey"}, "nm": {"new mexico"}, "ny": {"new york"},
	"nc": {"north carolina"}, "nd": {"north dakota"}, "oh": {"ohio"}, "ok": {"oklahoma"},
	"or": {"oregon"}, "pa": {"pennsylvania"}, "ri": {"rhode island"}, "sc": {"south carolina"},
	"sd": {"south dakota"}, "tn": {"tennessee", "tamil nadu"}, "tx": {"texas"}, "ut": {"utah"},
	"vt": {"vermont"}, "va": {"virginia"}, "wa": {"washington"}, "wv": {"west virginia"},
	"wi": {"wisconsin"}, "wy": {"wyoming"}, "dc": {"district of columbia"},

	// India states and union territories
	"ap": {"andhra pradesh"}, "as": {"assam"}, "br": {"bihar"}, "cg": {"chhattisgarh"},
	"dl": {"delhi"}, "gj": {"gujarat"}, "hr": {"haryana"}, "hp": {"himachal pradesh"},
	"jh": {"jharkhand"}, "ka": {"karnataka"}, "kl": {"kerala"}, "mp": {"madhya pradesh"},
	"mh": {"maharashtra"}, "od": {"odisha"}, "pb": {"punjab"}, "rj": {"rajasthan"},
	"tg": {"telangana"}, "ts": {"telangana"}, "up": {"uttar pradesh"},
	"wb": {"west bengal"}, "jk": {"jammu and kashmir"},
}
