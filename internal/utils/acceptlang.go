package utils

import (
	"sort"
	"strconv"
	"strings"
)

// DetermineLocale resolves the response locale. An explicit query value wins, then the
// highest weighted supported tag of the Accept-Language header, then def. Region subtags
// reduce to their base language ("zh-CN" and "zh_TW" both match "zh"); q=0 excludes a tag.
func DetermineLocale(queryLang, acceptLang string, supported []string, def string) string {
	sup := make(map[string]struct{}, len(supported))
	for _, s := range supported {
		sup[strings.ToLower(s)] = struct{}{}
	}
	match := func(tag string) (string, bool) {
		l := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
		if l == "" {
			return "", false
		}
		if _, ok := sup[l]; ok {
			return l, true
		}
		if base, _, found := strings.Cut(l, "-"); found {
			if _, ok := sup[base]; ok {
				return base, true
			}
		}
		return "", false
	}

	if v, ok := match(queryLang); ok {
		return v
	}

	type weighted struct {
		lang string
		q    float64
	}
	var cands []weighted
	for _, part := range strings.Split(acceptLang, ",") {
		tag, params, _ := strings.Cut(part, ";")
		q := 1.0
		if k, v, ok := strings.Cut(params, "="); ok && strings.TrimSpace(k) == "q" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				continue
			}
			q = f
		}
		if q <= 0 {
			continue
		}
		if l, ok := match(tag); ok {
			cands = append(cands, weighted{lang: l, q: q})
		}
	}
	if len(cands) > 0 {
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].q > cands[j].q })
		return cands[0].lang
	}
	if v, ok := match(def); ok {
		return v
	}
	if len(supported) > 0 {
		return strings.ToLower(supported[0])
	}
	return "en"
}
