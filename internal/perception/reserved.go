package perception

import "strings"

// ReservedTokens are words that match the identifier patterns but can never
// name a well or a group: phases, unit abbreviations, control modes, summary
// mnemonics and plain grammar words. Identifier candidates are extracted first
// and then filtered against this set.
var ReservedTokens = map[string]struct{}{
	// phases
	"OIL": {}, "GAS": {}, "WATER": {}, "WAT": {}, "LIQ": {}, "LIQUID": {}, "RES": {},
	// ratios and control modes
	"GOR": {}, "WCT": {}, "WGR": {}, "ORAT": {}, "GRAT": {}, "WRAT": {}, "LRAT": {},
	"RESV": {}, "BHP": {}, "THP": {}, "GRUP": {}, "NONE": {}, "SHUT": {}, "STOP": {}, "OPEN": {},
	// units
	"BBL": {}, "BBLS": {}, "STB": {}, "BPD": {}, "SM3": {}, "M3": {}, "MSCF": {}, "MMSCF": {},
	"SCF": {}, "MCF": {}, "PSI": {}, "PSIA": {}, "BAR": {}, "BARSA": {}, "KPA": {}, "DAY": {},
	// summary mnemonics
	"FOPR": {}, "FGPR": {}, "FWPR": {}, "GOPR": {}, "GGPR": {}, "GWPR": {}, "WOPR": {}, "WBHP": {},
	// domain nouns
	"FIELD": {}, "RATE": {}, "RATES": {}, "PRESSURE": {}, "PRODUCTION": {}, "INJECTION": {},
	"LIMIT": {}, "CEILING": {}, "TARGET": {}, "WELL": {}, "WELLS": {}, "GROUP": {}, "GROUPS": {},
	"PRODUCER": {}, "INJECTOR": {}, "CELL": {}, "NAME": {}, "NAMED": {},
	// grammar words
	"THE": {}, "A": {}, "AN": {}, "TO": {}, "AT": {}, "IN": {}, "ON": {}, "OF": {}, "FOR": {},
	"WITH": {}, "UNDER": {}, "AND": {}, "OR": {}, "BY": {}, "IT": {}, "THIS": {}, "THAT": {},
	"ALL": {}, "FROM": {}, "PER": {}, "IS": {},
}

// IsReserved reports whether token may not be used as an asset identifier.
func IsReserved(token string) bool {
	_, ok := ReservedTokens[strings.ToUpper(strings.TrimSpace(token))]
	return ok
}
