package command

import "strings"

// DefaultLoadOptions are always applied to Redshift loads unless an
// override targets the same keyword.
func DefaultLoadOptions() []string {
	return []string{"DATEFORMAT 'auto'", "COMPUPDATE ON", "TRUNCATECOLUMNS"}
}

// Keyword returns the normalized leading keyword of an option: its first
// token, upper-cased, cut at any '='.
func Keyword(option string) string {
	fields := strings.Fields(option)
	if len(fields) == 0 {
		return ""
	}
	kw, _, _ := strings.Cut(fields[0], "=")
	return strings.ToUpper(kw)
}

// HasKeyword reports whether any option leads with keyword.
func HasKeyword(options []string, keyword string) bool {
	keyword = strings.ToUpper(keyword)
	for _, opt := range options {
		if Keyword(opt) == keyword {
			return true
		}
	}
	return false
}

// ContainsWord reports whether any option contains word as a whole token,
// e.g. PARQUET in "FORMAT AS PARQUET".
func ContainsWord(options []string, word string) bool {
	for _, opt := range options {
		for _, f := range strings.Fields(opt) {
			if strings.EqualFold(f, word) {
				return true
			}
		}
	}
	return false
}

// MergeOptions combines defaults with caller overrides. An override whose
// keyword matches a default takes that default's slot; remaining overrides
// follow in caller order. When several overrides share a keyword the last
// one wins, so no keyword appears twice in the result.
func MergeOptions(defaults, overrides []string) []string {
	last := make(map[string]string, len(overrides))
	for _, o := range overrides {
		if kw := Keyword(o); kw != "" {
			last[kw] = o
		}
	}

	out := make([]string, 0, len(defaults)+len(overrides))
	used := make(map[string]bool, len(defaults)+len(overrides))
	for _, d := range defaults {
		kw := Keyword(d)
		if used[kw] {
			continue
		}
		used[kw] = true
		if o, ok := last[kw]; ok {
			out = append(out, o)
		} else {
			out = append(out, d)
		}
	}
	for _, o := range overrides {
		kw := Keyword(o)
		if kw == "" || used[kw] {
			continue
		}
		used[kw] = true
		out = append(out, last[kw])
	}
	return out
}

// appendIfMissing adds option unless its keyword is already present.
func appendIfMissing(options []string, option string) []string {
	if option == "" || HasKeyword(options, Keyword(option)) {
		return options
	}
	return append(options, option)
}
