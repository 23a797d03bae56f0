package domain

import (
	"encoding/json"
	"slices"
	"strings"
)

// Metadata is what a connection told us about itself.
// A nil pointer (or nil Pairs) means the field was never supplied.
type Metadata struct {
	Role   *string
	Pairs  json.RawMessage
	Want   *string
	Source *string
}

// MetaPatch carries only the fields a client sent. Absent and null fields
// leave the current value untouched.
type MetaPatch struct {
	Role   Field[string]
	Pairs  Field[json.RawMessage]
	Want   Field[string]
	Source Field[string]
}

func (p MetaPatch) Empty() bool {
	return !p.Role.Present() && !p.Pairs.Present() && !p.Want.Present() && !p.Source.Present()
}

// Apply returns m with every present patch field written over it.
func (p MetaPatch) Apply(m Metadata) Metadata {
	if p.Role.Present() {
		v := p.Role.Value
		m.Role = &v
	}
	if p.Pairs.Present() {
		m.Pairs = slices.Clone(p.Pairs.Value)
	}
	if p.Want.Present() {
		v := p.Want.Value
		m.Want = &v
	}
	if p.Source.Present() {
		v := p.Source.Value
		m.Source = &v
	}
	return m
}

// MetaFields is the wire shape shared by join and update-meta.
// target and target_code are aliases of want.
type MetaFields struct {
	Role       Field[string]          `json:"role"`
	Pairs      Field[json.RawMessage] `json:"pairs"`
	Source     Field[string]          `json:"source"`
	Want       Field[string]          `json:"want"`
	Target     Field[string]          `json:"target"`
	TargetCode Field[string]          `json:"target_code"`
}

// DecodeMetaFields reads the metadata keys of an inbound frame one by one.
// A key of the wrong JSON type is left unset and reported in skipped; the
// remaining keys still apply.
func DecodeMetaFields(fields map[string]json.RawMessage) (f MetaFields, skipped []string) {
	decodeField(fields, "role", &f.Role, &skipped)
	decodeField(fields, "pairs", &f.Pairs, &skipped)
	decodeField(fields, "source", &f.Source, &skipped)
	decodeField(fields, "want", &f.Want, &skipped)
	decodeField(fields, "target", &f.Target, &skipped)
	decodeField(fields, "target_code", &f.TargetCode, &skipped)
	return f, skipped
}

func decodeField[T any](fields map[string]json.RawMessage, key string, dst *Field[T], skipped *[]string) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var v Field[T]
	if err := v.UnmarshalJSON(raw); err != nil {
		*skipped = append(*skipped, key)
		return
	}
	*dst = v
}

// JoinPatch resolves want as the first non-empty of want, target, target_code.
func (f MetaFields) JoinPatch() MetaPatch {
	p := MetaPatch{Role: f.Role, Pairs: f.Pairs, Source: f.Source}
	for _, alias := range []Field[string]{f.Want, f.Target, f.TargetCode} {
		if alias.Present() && alias.Value != "" {
			p.Want = Some(alias.Value)
			break
		}
	}
	return p
}

// UpdatePatch applies want, target, target_code in that order, so the last
// one present wins.
func (f MetaFields) UpdatePatch() MetaPatch {
	p := MetaPatch{Role: f.Role, Pairs: f.Pairs, Source: f.Source}
	for _, alias := range []Field[string]{f.Want, f.Target, f.TargetCode} {
		if alias.Present() {
			p.Want = Some(alias.Value)
		}
	}
	return p
}

// Sources derives the source-language set: the trimmed single source plus
// every pair's source code. The result is sorted and deduplicated.
func (m Metadata) Sources() []string {
	set := make(map[string]struct{})
	if m.Source != nil {
		if s := strings.TrimSpace(*m.Source); s != "" {
			set[s] = struct{}{}
		}
	}
	for _, code := range pairSourceCodes(m.Pairs) {
		set[code] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	slices.Sort(out)
	return out
}

// pairSourceCodes reads pairs leniently: anything that is not a list of
// {source:{code:string}} objects is skipped entry by entry.
func pairSourceCodes(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var pair struct {
			Source struct {
				Code any `json:"code"`
			} `json:"source"`
		}
		if err := json.Unmarshal(item, &pair); err != nil {
			continue
		}
		code, ok := pair.Source.Code.(string)
		if !ok {
			continue
		}
		if code = strings.TrimSpace(code); code != "" {
			out = append(out, code)
		}
	}
	return out
}

// Diff returns the codes in before but not in after, and the codes in after
// but not in before.
func Diff(before, after []string) (removed, added []string) {
	for _, code := range before {
		if !slices.Contains(after, code) {
			removed = append(removed, code)
		}
	}
	for _, code := range after {
		if !slices.Contains(before, code) {
			added = append(added, code)
		}
	}
	return removed, added
}
